package config

import (
	"os"
	"path/filepath"
	"testing"
)

// isolateEnv 清空所有绑定的环境变量，避免宿主环境影响断言。
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range envBindings {
		unsetEnv(t, name)
	}
}

func unsetEnv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	if err := os.Unsetenv(name); err != nil {
		t.Fatalf("清除环境变量 %s 失败: %v", name, err)
	}
}

func writeTempEnvFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时 .env 失败: %v", err)
	}
	return path
}
