package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.AuthMode != AuthModeLocal {
		t.Fatalf("expected default auth mode local, got %q", cfg.AuthMode)
	}
	if cfg.CheckInterval != time.Minute {
		t.Fatalf("expected default check interval 1m, got %v", cfg.CheckInterval)
	}
	if cfg.TokenExpiry != 7*24*time.Hour {
		t.Fatalf("expected default token expiry 1 week, got %v", cfg.TokenExpiry)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"API_BASE_URL":        "http://example.com/api",
		"WS_BASE_URL":         "ws://example.com/api/ws",
		"AUTH_MODE":           "remote",
		"TOKEN_CHECK_SECONDS": "5",
		"PORT":                "1234",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIBaseURL != "http://example.com/api" {
		t.Fatalf("unexpected api base url %q", cfg.APIBaseURL)
	}
	if cfg.WSBaseURL != "ws://example.com/api/ws" {
		t.Fatalf("unexpected ws base url %q", cfg.WSBaseURL)
	}
	if cfg.AuthMode != AuthModeRemote {
		t.Fatalf("unexpected auth mode %q", cfg.AuthMode)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Fatalf("unexpected check interval %v", cfg.CheckInterval)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  mapEnv
	}{
		{"bad auth mode", mapEnv{"AUTH_MODE": "both"}},
		{"bad port", mapEnv{"PORT": "-1"}},
		{"bad check interval", mapEnv{"TOKEN_CHECK_SECONDS": "zero"}},
		{"bad token expiry", mapEnv{"TOKEN_EXPIRY_SECONDS": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfigFromEnv(tc.env); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
