package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoggingFallbackToStdout(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 不受目录权限限制，无法构造写入失败")
	}
	isolateEnv(t)
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	t.Setenv("FRONTDOOR_LOG_FILE", filepath.Join(blocked, "sub", "frontdoor.log"))
	t.Setenv("FRONTDOOR_DIST_DIR", writeDist(t))

	useBufferWriters(t)
	code := run(cliOptions{envFile: filepath.Join(dir, "absent.env"), checkOnly: true})
	if code != 0 {
		t.Fatalf("日志 fallback 不应导致失败，得到 %d", code)
	}
}

func TestLoggingWritesRotatingFile(t *testing.T) {
	isolateEnv(t)
	logPath := filepath.Join(t.TempDir(), "logs", "frontdoor.log")
	t.Setenv("FRONTDOOR_LOG_FILE", logPath)

	useBufferWriters(t)
	if code := run(cliOptions{checkOnly: true}); code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("日志文件不应为空")
	}
}
