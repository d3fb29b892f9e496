package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.APIAddr != ":8080" {
		t.Errorf("APIAddr = %q, want :8080", cfg.APIAddr)
	}
	if cfg.SourceBackend != "memory" {
		t.Errorf("SourceBackend = %q, want memory", cfg.SourceBackend)
	}
	if cfg.CollectTimeout != 5*time.Second {
		t.Errorf("CollectTimeout = %v, want 5s", cfg.CollectTimeout)
	}
	if cfg.LiteMaxAge != time.Minute {
		t.Errorf("LiteMaxAge = %v, want 1m", cfg.LiteMaxAge)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SITEPULSE_API_ADDR", ":9999")
	t.Setenv("SITEPULSE_SOURCE_BACKEND", "sqlite")
	t.Setenv("SITEPULSE_LOG_WINDOW", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.APIAddr != ":9999" {
		t.Errorf("APIAddr = %q, want :9999", cfg.APIAddr)
	}
	if cfg.SourceBackend != "sqlite" {
		t.Errorf("SourceBackend = %q, want sqlite", cfg.SourceBackend)
	}
	if cfg.LogWindow != 2*time.Hour {
		t.Errorf("LogWindow = %v, want 2h", cfg.LogWindow)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SITEPULSE_COLLECT_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
