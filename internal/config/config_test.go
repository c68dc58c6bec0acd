package config

import (
	"os"
	"testing"
)

func TestLoadAppliesEnvironmentPreset(t *testing.T) {
	os.Unsetenv("MEMTRACE_ENV")
	os.Unsetenv("MEMTRACE_DESTINATION")
	os.Unsetenv("MEMTRACE_TRACES_PATH")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected development default, got %q", cfg.Environment)
	}
	if cfg.Destination != environmentDefaults["development"].Destination {
		t.Errorf("expected development destination preset, got %q", cfg.Destination)
	}
	if cfg.PendingWatermark != 128 {
		t.Errorf("expected default pending watermark 128, got %d", cfg.PendingWatermark)
	}
}

func TestLoadProductionEnvironment(t *testing.T) {
	t.Setenv("MEMTRACE_ENV", "production")
	t.Setenv("MEMTRACE_DESTINATION", "")
	t.Setenv("MEMTRACE_TRACES_PATH", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Destination != environmentDefaults["production"].Destination {
		t.Errorf("expected production destination preset, got %q", cfg.Destination)
	}
}
