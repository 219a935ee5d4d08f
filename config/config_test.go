package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiberline/backoffice/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "backoffice.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Directory.Mode != "local" {
		t.Errorf("directory mode = %q, want local", cfg.Directory.Mode)
	}
	if cfg.Intake.IdentityLength != 8 {
		t.Errorf("identity length = %d, want 8", cfg.Intake.IdentityLength)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("token ttl = %v, want 12h", cfg.Auth.TokenTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
auth:
  jwt_secret: supersecret
  token_ttl: 2h
billing:
  lapse_interval: 1h
intake:
  identity_length: 10
directory:
  mode: remote
  remote:
    url: https://registry.example.com
reconcile:
  enabled: true
  remote:
    url: https://provisioning.example.com
    api_key: sync-key
database:
  dsn: /var/lib/backoffice/data.db
logging:
  level: debug
  format: console
metrics:
  enabled: true
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Auth.JWTSecret != "supersecret" || cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Billing.LapseInterval != time.Hour {
		t.Errorf("lapse interval = %v", cfg.Billing.LapseInterval)
	}
	if cfg.Intake.IdentityLength != 10 {
		t.Errorf("identity length = %d", cfg.Intake.IdentityLength)
	}
	if cfg.Directory.Mode != "remote" || cfg.Directory.Remote.URL != "https://registry.example.com" {
		t.Errorf("directory = %+v", cfg.Directory)
	}
	if !cfg.Reconcile.Enabled || cfg.Reconcile.Remote.APIKey != "sync-key" {
		t.Errorf("reconcile = %+v", cfg.Reconcile)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"remote directory without url", "directory:\n  mode: remote\n"},
		{"reconcile enabled without url", "reconcile:\n  enabled: true\n"},
		{"unknown directory mode", "directory:\n  mode: ldap\n"},
		{"unsupported database driver", "database:\n  driver: postgres\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := config.Load(path); err == nil {
				t.Error("Load succeeded, want validation error")
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKOFFICE_SERVER_PORT", "7070")
	t.Setenv("BACKOFFICE_LOG_LEVEL", "warn")
	t.Setenv("BACKOFFICE_RECONCILE_URL", "https://provisioning.example.com")

	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, env override must win over file", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if !cfg.Reconcile.Enabled || cfg.Reconcile.Remote.URL != "https://provisioning.example.com" {
		t.Errorf("reconcile = %+v, setting the URL must enable it", cfg.Reconcile)
	}
}

func TestLoadWithFallback_NoFile(t *testing.T) {
	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
}
