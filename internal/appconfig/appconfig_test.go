package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pull.Addr != "0.0.0.0:5555" {
		t.Errorf("expected default pull addr, got %s", cfg.Pull.Addr)
	}
	if cfg.Sweeper.HeartbeatTimeout != 60*time.Second {
		t.Errorf("expected 60s heartbeat timeout, got %v", cfg.Sweeper.HeartbeatTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadWithNoOverlaysReturnsDefaults(t *testing.T) {
	dir, err := os.MkdirTemp("", "relayd-appconfig-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	cfg, err := Load(dir, "dev")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != "0.0.0.0:8080" {
		t.Errorf("expected default HTTP addr, got %s", cfg.HTTP.Addr)
	}
}

func TestLoadLayersBaseThenEnv(t *testing.T) {
	dir, err := os.MkdirTemp("", "relayd-appconfig-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	base := "storage:\n  data_dir: /var/lib/relayd\nlogging:\n  level: warn\n"
	if err := os.WriteFile(filepath.Join(dir, BaseFileName), []byte(base), 0600); err != nil {
		t.Fatalf("write base: %v", err)
	}
	prod := "logging:\n  level: error\n"
	if err := os.WriteFile(filepath.Join(dir, EnvFileNameTemplate("prod")), []byte(prod), 0600); err != nil {
		t.Fatalf("write env overlay: %v", err)
	}

	cfg, err := Load(dir, "prod")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataDir != "/var/lib/relayd" {
		t.Errorf("base value not applied: %s", cfg.Storage.DataDir)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("env overlay did not win: %s", cfg.Logging.Level)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "relayd-appconfig-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir, "dev")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("expected saved level to round trip, got %s", loaded.Logging.Level)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		input    string
		expected string
	}{
		{"~/.relayd", filepath.Join(home, ".relayd")},
		{"/absolute/path", "/absolute/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandPath(tt.input); got != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
