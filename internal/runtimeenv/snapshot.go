// Package runtimeenv captures the environment values exposed to the browser
// bundle through window.__ENV__.
package runtimeenv

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// GlobalName is the window property the SPA reads its runtime config from.
const GlobalName = "__ENV__"

// Snapshot is the fixed set of keys handed to the client. Every field is a
// string; unset variables fall back to the envDefault or to "".
type Snapshot struct {
	NodeEnv        string `env:"NODE_ENV"          envDefault:"production" json:"NODE_ENV"`
	Port           string `env:"PORT"              envDefault:"8080"       json:"PORT"`
	DevAppURL      string `env:"VITE_DEV_APP_URL"                          json:"VITE_DEV_APP_URL"`
	LiveAppURL     string `env:"VITE_LIVE_APP_URL"                         json:"VITE_LIVE_APP_URL"`
	FlutterwaveKey string `env:"VITE_FLWPUBKTEST"                          json:"VITE_FLWPUBKTEST"`
	UploadLogo     string `env:"VITE_UPLOAD_LOGO"                          json:"VITE_UPLOAD_LOGO"`
	AppURL         string `env:"VITE_APP_URL"                              json:"VITE_APP_URL"`
}

// Source returns the environment to capture from.
type Source func() map[string]string

// ProcessEnv reads the current process environment.
func ProcessEnv() map[string]string {
	return env.ToMap(os.Environ())
}

// Capture builds a snapshot from environ. Empty values are treated as unset
// so that defaults apply to NODE_ENV= and PORT= as well.
func Capture(environ map[string]string) (Snapshot, error) {
	filtered := make(map[string]string, len(environ))
	for key, value := range environ {
		if value != "" {
			filtered[key] = value
		}
	}

	var snap Snapshot
	if err := env.ParseWithOptions(&snap, env.Options{Environment: filtered}); err != nil {
		return Snapshot{}, fmt.Errorf("capture runtime env: %w", err)
	}
	return snap, nil
}

// Script renders the snapshot as an inline script assigning window.__ENV__.
// encoding/json escapes <, > and &, so values cannot close the script tag.
func (s Snapshot) Script() (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode runtime env: %w", err)
	}
	return fmt.Sprintf("<script>window.%s = %s;</script>", GlobalName, payload), nil
}
