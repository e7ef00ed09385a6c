package config

import (
	"os"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	for _, k := range []string{EnvPort, EnvThumbSize, EnvBackendTimeout, EnvHeadless, EnvKeepStreams} {
		os.Unsetenv(k)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if w, h := cfg.ThumbSize(); w != 100 || h != 70 {
		t.Errorf("ThumbSize() = %dx%d, want 100x70", w, h)
	}
	if cfg.BackendTimeout() != 0 {
		t.Errorf("BackendTimeout() = %v, want 0", cfg.BackendTimeout())
	}
	if !cfg.KeepAllStreams() {
		t.Error("KeepAllStreams() = false, want true")
	}
	if cfg.Headless() {
		t.Error("Headless() = true, want false")
	}
}

func TestNew_FromEnv(t *testing.T) {
	t.Setenv(EnvPort, "9001")
	t.Setenv(EnvThumbSize, "160x90")
	t.Setenv(EnvBackendTimeout, "90s")
	t.Setenv(EnvHeadless, "true")
	t.Setenv(EnvKeepStreams, "false")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9001 {
		t.Errorf("Port() = %d, want 9001", cfg.Port())
	}
	if w, h := cfg.ThumbSize(); w != 160 || h != 90 {
		t.Errorf("ThumbSize() = %dx%d, want 160x90", w, h)
	}
	if cfg.BackendTimeout() != 90*time.Second {
		t.Errorf("BackendTimeout() = %v, want 90s", cfg.BackendTimeout())
	}
	if !cfg.Headless() {
		t.Error("Headless() = false, want true")
	}
	if cfg.KeepAllStreams() {
		t.Error("KeepAllStreams() = true, want false")
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port not a number", EnvPort, "abc"},
		{"port out of range", EnvPort, "70000"},
		{"bad thumb size", EnvThumbSize, "100"},
		{"negative timeout", EnvBackendTimeout, "-1s"},
		{"bad headless", EnvHeadless, "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := New(); err == nil {
				t.Errorf("New() with %s=%q should fail", tt.key, tt.val)
			}
		})
	}
}
