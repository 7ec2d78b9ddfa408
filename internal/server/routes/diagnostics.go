package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/frontdoor/frontdoor/internal/config"
	"github.com/frontdoor/frontdoor/internal/identity"
	"github.com/frontdoor/frontdoor/internal/server"
	"github.com/frontdoor/frontdoor/internal/version"
)

// CredentialReporter exposes the identity cache state without granting access to the token.
type CredentialReporter interface {
	State() identity.State
}

// RegisterDiagnosticsRoutes 暴露 /-/healthz 与 /-/runtime 诊断接口，供平台探活与排障使用。
// credentials 为空表示静态模式，未启用身份令牌缓存。
func RegisterDiagnosticsRoutes(app *fiber.App, cfg *config.Config, credentials CredentialReporter) {
	if app == nil || cfg == nil {
		return
	}

	app.Get(server.HealthzPath, func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get(server.RuntimePath, func(c fiber.Ctx) error {
		return c.JSON(encodeRuntime(cfg, credentials))
	})
}

type runtimePayload struct {
	Version           string             `json:"version"`
	Mode              string             `json:"mode"`
	ProxyEnabled      bool               `json:"proxy_enabled"`
	BackendConfigured bool               `json:"backend_configured"`
	Credential        *credentialPayload `json:"credential,omitempty"`
}

type credentialPayload struct {
	Cached    bool   `json:"cached"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func encodeRuntime(cfg *config.Config, credentials CredentialReporter) runtimePayload {
	payload := runtimePayload{
		Version:           version.Full(),
		Mode:              cfg.Global.Mode,
		ProxyEnabled:      cfg.Global.EnableProxy,
		BackendConfigured: cfg.BackendURL() != "",
	}
	if credentials != nil {
		state := credentials.State()
		item := &credentialPayload{Cached: state.Cached}
		if state.Cached {
			item.ExpiresAt = state.ExpiresAt.UTC().Format(time.RFC3339)
		}
		payload.Credential = item
	}
	return payload
}
