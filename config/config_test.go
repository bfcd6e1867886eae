package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firasghr/GoPotluck/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.SessionTTL != 4*time.Hour {
		t.Errorf("SessionTTL = %v, want 4h", cfg.SessionTTL)
	}
	if cfg.ReapInterval != 30*time.Minute {
		t.Errorf("ReapInterval = %v, want 30m", cfg.ReapInterval)
	}
	if cfg.SendBuffer <= 0 {
		t.Errorf("SendBuffer = %d, want > 0", cfg.SendBuffer)
	}
}

func TestDefaultConfigIsFreshCopy(t *testing.T) {
	a := config.DefaultConfig()
	a.ListenAddr = ":9999"
	b := config.DefaultConfig()
	if b.ListenAddr == ":9999" {
		t.Error("DefaultConfig returned a shared instance")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	body := `{"listen_addr": ":7070", "session_ttl": 2000000000}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want :7070", cfg.ListenAddr)
	}
	if cfg.SessionTTL != 2*time.Second {
		t.Errorf("SessionTTL = %v, want 2s", cfg.SessionTTL)
	}
}

func TestLoadConfigUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	if err := os.WriteFile(path, []byte(`{"listne_addr": ":7070"}`), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := config.LoadConfig(path); err == nil {
		t.Error("expected error for unknown field, got nil")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := (&config.Config{ListenAddr: ":7070"}).WithDefaults()
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want explicit value preserved", cfg.ListenAddr)
	}
	if cfg.SessionTTL != 4*time.Hour {
		t.Errorf("SessionTTL = %v, want default 4h", cfg.SessionTTL)
	}
	if cfg.WSPath != "/ws" {
		t.Errorf("WSPath = %q, want default /ws", cfg.WSPath)
	}
}

func TestWithDefaultsKeepsDashboardDisabled(t *testing.T) {
	// An empty DashboardAddr means "dashboard disabled" and must survive
	// WithDefaults; only DefaultConfig opts in.
	cfg := (&config.Config{ListenAddr: ":7070"}).WithDefaults()
	if cfg.DashboardAddr != "" {
		t.Errorf("DashboardAddr = %q, want empty (disabled)", cfg.DashboardAddr)
	}
	if config.DefaultConfig().DashboardAddr == "" {
		t.Error("DefaultConfig should enable the dashboard")
	}
}
