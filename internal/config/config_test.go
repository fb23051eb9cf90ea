package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/widyaops/confdeploy/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Deploy.ConfigRoot != "/etc" {
		t.Errorf("expected default config root /etc, got %s", cfg.Deploy.ConfigRoot)
	}
	if cfg.Deploy.GetSettleInterval() != 2*time.Second {
		t.Errorf("expected default settle interval 2s, got %v", cfg.Deploy.GetSettleInterval())
	}
	if cfg.Auth.GetSessionDuration() != 24*time.Hour {
		t.Errorf("expected default session duration 24h, got %v", cfg.Auth.GetSessionDuration())
	}
	if cfg.Admin.Username != "admin" {
		t.Errorf("expected default admin username, got %s", cfg.Admin.Username)
	}
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  path_prefix: "/agent"
database:
  path: "/tmp/test.db"
deploy:
  config_root: "/srv/configs"
  backup_root: "/srv/backups"
  settle_seconds: 1
auth:
  session_duration: "1h"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.PathPrefix != "/agent" {
		t.Errorf("expected path prefix /agent, got %s", cfg.Server.PathPrefix)
	}
	if cfg.Deploy.ConfigRoot != "/srv/configs" {
		t.Errorf("expected config root /srv/configs, got %s", cfg.Deploy.ConfigRoot)
	}
	if cfg.Deploy.GetSettleInterval() != time.Second {
		t.Errorf("expected settle interval 1s, got %v", cfg.Deploy.GetSettleInterval())
	}
	if cfg.Auth.GetSessionDuration() != time.Hour {
		t.Errorf("expected session duration 1h, got %v", cfg.Auth.GetSessionDuration())
	}
	// Unset fields still get defaults.
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("expected default bcrypt cost, got %d", cfg.Auth.BcryptCost)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
