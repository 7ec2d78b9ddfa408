package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frontdoor/frontdoor/internal/logging"
)

// Route is one step of the ordered request pipeline. It either serves the
// request and reports handled, or passes to the next route.
type Route interface {
	Serve(fiber.Ctx) (handled bool, err error)
}

// RouteFunc adapts a function to the Route interface.
type RouteFunc func(fiber.Ctx) (bool, error)

// Serve makes RouteFunc satisfy Route.
func (f RouteFunc) Serve(c fiber.Ctx) (bool, error) {
	return f(c)
}

// PrefixRoute serves requests whose path is prefix or lies below prefix.
func PrefixRoute(prefix string, handler fiber.Handler) Route {
	prefix = strings.TrimRight(prefix, "/")
	return RouteFunc(func(c fiber.Ctx) (bool, error) {
		path := c.Path()
		if path != prefix && !strings.HasPrefix(path, prefix+"/") {
			return false, nil
		}
		return true, handler(c)
	})
}

// AppOptions controls how the Fiber application dispatches requests.
type AppOptions struct {
	Logger *logrus.Logger
	// Routes are evaluated in order; the first one that handles wins.
	Routes []Route
	// Fallback serves every request no route handled.
	Fallback   fiber.Handler
	ListenPort int
}

const contextKeyRequestID = "_frontdoor_request_id"

// Diagnostics endpoints registered after NewApp. Only these exact paths skip
// the pipeline; other /-/ paths are ordinary assets or app routes.
const (
	HealthzPath = "/-/healthz"
	RuntimePath = "/-/runtime"
)

// NewApp builds a Fiber application with request-id/access-log middleware and
// the ordered route pipeline mounted as the catch-all.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Fallback == nil {
		return nil, errors.New("fallback handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	routes := append([]Route(nil), opts.Routes...)
	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(c.Path()) {
			return c.Next()
		}
		for _, route := range routes {
			handled, err := route.Serve(c)
			if handled || err != nil {
				return err
			}
		}
		return opts.Fallback(c)
	})

	return app, nil
}

// requestContextMiddleware 生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		fields := logging.RequestFields(c.Method(), c.Path(), reqID)
		fields["action"] = "request"
		fields["status"] = c.Response().StatusCode()
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		if err != nil {
			fields["error"] = err.Error()
			logger.WithFields(fields).Warn("request_failed")
			return err
		}
		logger.WithFields(fields).Debug("request_complete")
		return nil
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return path == HealthzPath || path == RuntimePath
}
