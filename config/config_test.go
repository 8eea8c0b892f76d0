package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BROADCAST_DELAY", "")
	t.Setenv("BROADCAST_PROGRESS_EVERY", "")
	t.Setenv("HYDRAX_BASE_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BroadcastDelay != 500*time.Millisecond {
		t.Errorf("BroadcastDelay = %v, want 500ms", cfg.BroadcastDelay)
	}
	if cfg.BroadcastProgressEvery != 5 {
		t.Errorf("BroadcastProgressEvery = %d, want 5", cfg.BroadcastProgressEvery)
	}
	if cfg.HydraxBaseURL != "http://up.hydrax.net" {
		t.Errorf("HydraxBaseURL = %q, want default hydrax endpoint", cfg.HydraxBaseURL)
	}
	if cfg.DataDir == "" {
		t.Errorf("expected default data dir, got empty")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CREATOR_ID", "not-a-number")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for non-numeric CREATOR_ID")
	}
	t.Setenv("CREATOR_ID", "12345")
	t.Setenv("BROADCAST_DELAY", "-2s")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for negative BROADCAST_DELAY")
	}
}

func TestValidateBotReady(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CREATOR_ID", "42")
	t.Setenv("BROADCAST_DELAY", "")
	cfg, _ := Load()
	if err := cfg.ValidateBotReady(); err != nil {
		t.Errorf("expected valid bot config, got %v", err)
	}
	if err := os.Unsetenv("BOT_TOKEN"); err != nil {
		t.Fatalf("failed to unset BOT_TOKEN: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateBotReady(); err == nil {
		t.Errorf("expected error when missing telegram envs")
	}
}
