// Package proxy forwards /api requests to the private backend and attaches the
// service identity token.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/frontdoor/frontdoor/internal/logging"
	"github.com/frontdoor/frontdoor/internal/server"
)

// Prefix is the path prefix routed to the backend.
const Prefix = "/api"

// HeaderUserAuthorization carries the caller's own Authorization header so the
// service credential does not overwrite it.
const HeaderUserAuthorization = "X-User-Authorization"

// Error codes written in the JSON body of proxy-level failures.
const (
	codeBackendMissing = "backend_not_configured"
	codeCredential     = "credential_unavailable"
	codeProxyFailed    = "proxy_failed"
)

var errBackendMissing = errors.New("backend url is not configured")

// Credentials supplies the bearer token for backend calls. An empty token
// with a nil error means "forward without service auth".
type Credentials interface {
	Get(ctx context.Context) (string, error)
}

// Options holds the handler dependencies.
type Options struct {
	Client      *http.Client
	Logger      *logrus.Logger
	BackendURL  string
	Credentials Credentials
}

// Handler relays requests to the backend. Backend statuses, including
// non-2xx, are passed through as-is; only transport and credential failures
// become 500s.
type Handler struct {
	client  *http.Client
	logger  *logrus.Logger
	backend string
	creds   Credentials
}

// NewHandler constructs a proxy handler. BackendURL may be empty; requests
// then fail with a configuration error instead of touching the network.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Client == nil {
		return nil, errors.New("http client is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credentials are required")
	}
	return &Handler{
		client:  opts.Client,
		logger:  opts.Logger,
		backend: opts.BackendURL,
		creds:   opts.Credentials,
	}, nil
}

// Route returns the handler as a pipeline step matching Prefix.
func (h *Handler) Route() server.Route {
	return server.PrefixRoute(Prefix, h.Handle)
}

// Handle forwards one request.
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	if h.backend == "" {
		h.logResult(c, "", requestID, 0, false, started, errBackendMissing)
		return h.writeError(c, codeBackendMissing, "API backend URL is not configured")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	token, err := h.creds.Get(ctx)
	if err != nil {
		h.logResult(c, "", requestID, 0, false, started, fmt.Errorf("credential: %w", err))
		return h.writeError(c, codeCredential, "Failed to authenticate with backend")
	}

	target := h.backend + c.OriginalURL()
	req, err := h.buildBackendRequest(ctx, c, target, token, requestID)
	if err != nil {
		h.logResult(c, target, requestID, 0, token != "", started, err)
		return h.writeError(c, codeProxyFailed, "Failed to reach backend service")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logResult(c, target, requestID, 0, token != "", started, err)
		return h.writeError(c, codeProxyFailed, "Failed to reach backend service")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logResult(c, target, requestID, resp.StatusCode, token != "", started, fmt.Errorf("read backend body: %w", err))
		return h.writeError(c, codeProxyFailed, "Failed to reach backend service")
	}

	copyResponseHeaders(c, resp.Header)
	contentType := resp.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEApplicationJSON
	}
	c.Set(fiber.HeaderContentType, contentType)
	h.logResult(c, target, requestID, resp.StatusCode, token != "", started, nil)
	return c.Status(resp.StatusCode).Send(body)
}

func (h *Handler) buildBackendRequest(
	ctx context.Context,
	c fiber.Ctx,
	target string,
	token string,
	requestID string,
) (*http.Request, error) {
	method := c.Method()
	var body io.Reader = http.NoBody
	if method != http.MethodGet && method != http.MethodHead {
		body = bytes.NewReader(append([]byte(nil), c.Body()...))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	contentType := c.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEApplicationJSON
	}
	req.Header.Set(fiber.HeaderContentType, contentType)

	if userAuth := c.Get(fiber.HeaderAuthorization); userAuth != "" {
		req.Header.Set(HeaderUserAuthorization, userAuth)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	return req, nil
}

// relayExcluded lists headers set by this server rather than copied from the backend.
var relayExcluded = map[string]struct{}{
	fiber.HeaderContentLength: {},
	fiber.HeaderContentType:   {},
	fiber.HeaderDate:          {},
	fiber.HeaderServer:        {},
	"X-Request-Id":            {},
}

// copyResponseHeaders relays backend headers except hop-by-hop ones and those
// in relayExcluded.
func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) {
			continue
		}
		if _, skip := relayExcluded[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, value := range values {
			c.Append(key, value)
		}
	}
}

func (h *Handler) writeError(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

func (h *Handler) logResult(
	c fiber.Ctx,
	upstream string,
	requestID string,
	status int,
	authenticated bool,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(c.Method(), c.Path(), requestID)
	fields["action"] = "proxy"
	fields["upstream"] = upstream
	fields["upstream_status"] = status
	fields["authenticated"] = authenticated
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}
