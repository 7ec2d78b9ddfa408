package runtimeenv

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCaptureAppliesDefaults(t *testing.T) {
	snap, err := Capture(map[string]string{})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if snap.NodeEnv != "production" {
		t.Fatalf("expected NODE_ENV default production, got %q", snap.NodeEnv)
	}
	if snap.Port != "8080" {
		t.Fatalf("expected PORT default 8080, got %q", snap.Port)
	}
	if snap.AppURL != "" || snap.DevAppURL != "" {
		t.Fatalf("expected unset values to be empty, got %+v", snap)
	}
}

func TestCaptureTreatsEmptyAsUnset(t *testing.T) {
	snap, err := Capture(map[string]string{"NODE_ENV": "", "PORT": ""})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if snap.NodeEnv != "production" || snap.Port != "8080" {
		t.Fatalf("expected defaults for empty values, got %+v", snap)
	}
}

func TestScriptHasExactlySevenStringKeys(t *testing.T) {
	snap, err := Capture(map[string]string{
		"NODE_ENV":          "development",
		"PORT":              "3000",
		"VITE_DEV_APP_URL":  "http://localhost:4000",
		"VITE_LIVE_APP_URL": "https://backend.example",
		"VITE_FLWPUBKTEST":  "FLWPUBK_TEST-123",
		"VITE_UPLOAD_LOGO":  "https://cdn.example/logo.png",
		"VITE_APP_URL":      "https://app.example",
		"UNRELATED":         "ignored",
	})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	script, err := snap.Script()
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	const prefix = "<script>window.__ENV__ = "
	const suffix = ";</script>"
	if !strings.HasPrefix(script, prefix) || !strings.HasSuffix(script, suffix) {
		t.Fatalf("unexpected script shape: %s", script)
	}

	var decoded map[string]any
	raw := strings.TrimSuffix(strings.TrimPrefix(script, prefix), suffix)
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	want := map[string]string{
		"NODE_ENV":          "development",
		"PORT":              "3000",
		"VITE_DEV_APP_URL":  "http://localhost:4000",
		"VITE_LIVE_APP_URL": "https://backend.example",
		"VITE_FLWPUBKTEST":  "FLWPUBK_TEST-123",
		"VITE_UPLOAD_LOGO":  "https://cdn.example/logo.png",
		"VITE_APP_URL":      "https://app.example",
	}
	if len(decoded) != len(want) {
		t.Fatalf("expected %d keys, got %d (%v)", len(want), len(decoded), decoded)
	}
	for key, value := range want {
		got, ok := decoded[key].(string)
		if !ok || got != value {
			t.Fatalf("key %s: expected %q, got %v", key, value, decoded[key])
		}
	}
}

func TestScriptEscapesClosingTag(t *testing.T) {
	snap := Snapshot{AppURL: "</script><script>alert(1)</script>"}
	script, err := snap.Script()
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if strings.Count(script, "</script>") != 1 {
		t.Fatalf("value must not terminate the script tag: %s", script)
	}
}
