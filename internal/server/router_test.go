package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterEvaluatesRoutesInOrder(t *testing.T) {
	var trace []string
	first := RouteFunc(func(c fiber.Ctx) (bool, error) {
		trace = append(trace, "static")
		if c.Path() == "/app.js" {
			return true, c.SendString("asset")
		}
		return false, nil
	})
	second := PrefixRoute("/api", func(c fiber.Ctx) error {
		trace = append(trace, "api")
		return c.SendString("api")
	})
	app := newTestApp(t, []Route{first, second}, func(c fiber.Ctx) error {
		trace = append(trace, "fallback")
		return c.SendString("spa")
	})

	cases := []struct {
		path  string
		body  string
		trace string
	}{
		{"/app.js", "asset", "static"},
		{"/api/widgets", "api", "static,api"},
		{"/dashboard", "spa", "static,fallback"},
	}
	for _, tc := range cases {
		trace = nil
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != tc.body {
			t.Fatalf("%s: expected body %q, got %q", tc.path, tc.body, string(body))
		}
		if got := strings.Join(trace, ","); got != tc.trace {
			t.Fatalf("%s: expected trace %q, got %q", tc.path, tc.trace, got)
		}
	}
}

func TestRouterSetsRequestID(t *testing.T) {
	var seen string
	app := newTestApp(t, nil, func(c fiber.Ctx) error {
		seen = RequestID(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	reqID := resp.Header.Get("X-Request-ID")
	if reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if seen != reqID {
		t.Fatalf("expected handler to see request id %q, got %q", reqID, seen)
	}
}

func TestRouterLeavesDiagnosticsToLaterRoutes(t *testing.T) {
	app := newTestApp(t, nil, func(c fiber.Ctx) error {
		return c.SendString("spa")
	})
	app.Get(HealthzPath, func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, HealthzPath, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("expected diagnostics handler, got %q", string(body))
	}
}

func TestRouterKeepsOtherDashPathsInPipeline(t *testing.T) {
	static := RouteFunc(func(c fiber.Ctx) (bool, error) {
		if c.Path() == "/-/x.js" {
			return true, c.SendString("asset")
		}
		return false, nil
	})
	app := newTestApp(t, []Route{static}, func(c fiber.Ctx) error {
		return c.SendString("spa")
	})
	app.Get(HealthzPath, func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	for path, want := range map[string]string{
		"/-/x.js":           "asset",
		"/-/profile":        "spa",
		"/-/healthz/nested": "spa",
		HealthzPath:         "ok",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != fiber.StatusOK || string(body) != want {
			t.Fatalf("%s: expected %q, got %d %q", path, want, resp.StatusCode, string(body))
		}
	}
}

func TestRouterRecoversFromPanic(t *testing.T) {
	app := newTestApp(t, nil, func(c fiber.Ctx) error {
		if c.Path() == "/boom" {
			panic("boom")
		}
		return c.SendString("spa")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/next", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected later requests to succeed, got %d", resp.StatusCode)
	}
}

func TestNewAppValidatesOptions(t *testing.T) {
	logger := logrus.New()
	if _, err := NewApp(AppOptions{Logger: logger, ListenPort: 8080}); err == nil {
		t.Fatalf("expected error without fallback")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Fallback: func(fiber.Ctx) error { return nil }}); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func newTestApp(t *testing.T, routes []Route, fallback fiber.Handler) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{
		Logger:     logger,
		Routes:     routes,
		Fallback:   fallback,
		ListenPort: 8080,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}
