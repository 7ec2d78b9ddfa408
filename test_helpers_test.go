package main

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/frontdoor/frontdoor/internal/config"
)

// managedEnv 列出测试会触碰的环境变量，统一清理以免宿主环境干扰。
var managedEnv = []string{
	"PORT", "NODE_ENV",
	"VITE_DEV_APP_URL", "VITE_LIVE_APP_URL", "VITE_FLWPUBKTEST", "VITE_UPLOAD_LOGO", "VITE_APP_URL",
	"FRONTDOOR_ENV_FILE", "FRONTDOOR_DIST_DIR", "FRONTDOOR_ENABLE_PROXY",
	"FRONTDOOR_LOG_LEVEL", "FRONTDOOR_LOG_FILE", "FRONTDOOR_UPSTREAM_TIMEOUT",
	"FRONTDOOR_IDENTITY_AUDIENCE", "FRONTDOOR_IDENTITY_TIMEOUT",
	"FRONTDOOR_TOKEN_LIFETIME", "FRONTDOOR_TOKEN_REFRESH_BUFFER",
	"GCE_METADATA_HOST",
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range managedEnv {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("清除环境变量 %s 失败: %v", name, err)
		}
	}
}

// useBufferWriters swaps stdOut/stdErr with in-memory buffers for the duration
// of a test, allowing assertions on CLI output without polluting test logs.
func useBufferWriters(t *testing.T) {
	t.Helper()

	prevOut := stdOut
	prevErr := stdErr

	stdOut = &bytes.Buffer{}
	stdErr = &bytes.Buffer{}

	t.Cleanup(func() {
		stdOut = prevOut
		stdErr = prevErr
	})
}

// writeDist 创建一个最小的构建目录：index.html 与一个静态资源。
func writeDist(t *testing.T) string {
	t.Helper()
	dist := t.TempDir()
	files := map[string]string{
		"index.html":    `<!doctype html><html><head><title>app</title></head><body><div id="root"></div></body></html>`,
		"assets/app.js": "console.log('app')",
	}
	for name, content := range files {
		full := filepath.Join(dist, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("创建目录失败: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("写入文件失败: %v", err)
		}
	}
	return dist
}

// newTestApp 通过环境变量加载配置并装配完整的 app。
func newTestApp(t *testing.T) (*fiber.App, *config.Config) {
	t.Helper()
	cfg, err := config.Load("", nil)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app, err := buildApp(cfg, logger)
	if err != nil {
		t.Fatalf("构建 app 失败: %v", err)
	}
	return app, cfg
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	return resp, string(body)
}
