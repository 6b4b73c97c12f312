package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.ContextWindow != 8 {
		t.Fatalf("ContextWindow = %d, want 8", cfg.ContextWindow)
	}
	if cfg.DemoAccessToken == "" {
		t.Fatalf("DemoAccessToken should have a default")
	}
	if cfg.CallInactivityTimeout < 10*time.Second {
		t.Fatalf("CallInactivityTimeout default too small: %v", cfg.CallInactivityTimeout)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("APP_CALL_INACTIVITY_TIMEOUT", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadRejectsTinySimulationInterval(t *testing.T) {
	t.Setenv("APP_SIMULATION_INTERVAL", "10ms")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsNonPositiveContextWindow(t *testing.T) {
	t.Setenv("APP_CONTEXT_WINDOW", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}
