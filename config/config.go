// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Billing   BillingConfig   `yaml:"billing"`
	Intake    IntakeConfig    `yaml:"intake"`
	Directory DirectoryConfig `yaml:"directory"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig configures operator authentication.
type AuthConfig struct {
	// JWTSecret signs session tokens. Empty means a random per-process
	// secret: sessions then do not survive a restart.
	JWTSecret string        `yaml:"jwt_secret,omitempty"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// AdminEmail and AdminPassword bootstrap the first operator on an
	// empty database.
	AdminEmail    string `yaml:"admin_email,omitempty"`
	AdminPassword string `yaml:"admin_password,omitempty"`
	BcryptCost    int    `yaml:"bcrypt_cost"`
}

// BillingConfig configures the billing engine.
type BillingConfig struct {
	// LapseInterval is how often open commitments are swept for lapsing.
	// Zero disables the background sweep; lapse still runs on demand.
	LapseInterval time.Duration `yaml:"lapse_interval"`
}

// IntakeConfig configures the client intake flow.
type IntakeConfig struct {
	// IdentityLength is the expected national identity number length.
	IdentityLength int `yaml:"identity_length"`
}

// DirectoryConfig selects where identity lookups go.
// Use "local" for the built-in account store or "remote" for an external
// registry.
type DirectoryConfig struct {
	Mode   string       `yaml:"mode"` // "local" or "remote"
	Remote RemoteConfig `yaml:"remote,omitempty"`
}

// ReconcileConfig configures the remote bulk status reconciliation.
type ReconcileConfig struct {
	Enabled bool         `yaml:"enabled"`
	Remote  RemoteConfig `yaml:"remote,omitempty"`
}

// RemoteConfig configures a remote service endpoint.
type RemoteConfig struct {
	URL     string            `yaml:"url"`
	APIKey  string            `yaml:"api_key,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	BACKOFFICE_DATABASE_DSN     - Database path (default: backoffice.db)
//	BACKOFFICE_SERVER_HOST      - Server host (default: 0.0.0.0)
//	BACKOFFICE_SERVER_PORT      - Server port (default: 8080)
//	BACKOFFICE_AUTH_JWT_SECRET  - Session token signing secret
//	BACKOFFICE_ADMIN_EMAIL      - Admin email for first-run bootstrap
//	BACKOFFICE_ADMIN_PASSWORD   - Admin password for first-run bootstrap
//	BACKOFFICE_DIRECTORY_MODE   - Identity lookups: local or remote (default: local)
//	BACKOFFICE_RECONCILE_URL    - Remote reconciliation endpoint
//	BACKOFFICE_LOG_LEVEL        - Log level: debug, info, warn, error (default: info)
//	BACKOFFICE_LOG_FORMAT       - Log format: json or console (default: json)
//	BACKOFFICE_METRICS_ENABLED  - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables, and finally to pure defaults.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies BACKOFFICE_* environment variables to the
// config. Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("BACKOFFICE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("BACKOFFICE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BACKOFFICE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("BACKOFFICE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Auth configuration
	if v := os.Getenv("BACKOFFICE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("BACKOFFICE_AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}
	if v := os.Getenv("BACKOFFICE_ADMIN_EMAIL"); v != "" {
		cfg.Auth.AdminEmail = v
	}
	if v := os.Getenv("BACKOFFICE_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}

	// Billing configuration
	if v := os.Getenv("BACKOFFICE_BILLING_LAPSE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Billing.LapseInterval = d
		}
	}

	// Intake configuration
	if v := os.Getenv("BACKOFFICE_INTAKE_IDENTITY_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Intake.IdentityLength = n
		}
	}

	// Directory configuration
	if v := os.Getenv("BACKOFFICE_DIRECTORY_MODE"); v != "" {
		cfg.Directory.Mode = v
	}
	if v := os.Getenv("BACKOFFICE_DIRECTORY_URL"); v != "" {
		cfg.Directory.Remote.URL = v
	}

	// Reconcile configuration
	if v := os.Getenv("BACKOFFICE_RECONCILE_URL"); v != "" {
		cfg.Reconcile.Enabled = true
		cfg.Reconcile.Remote.URL = v
	}
	if v := os.Getenv("BACKOFFICE_RECONCILE_API_KEY"); v != "" {
		cfg.Reconcile.Remote.APIKey = v
	}

	// Database configuration
	if v := os.Getenv("BACKOFFICE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("BACKOFFICE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := os.Getenv("BACKOFFICE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BACKOFFICE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("BACKOFFICE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("BACKOFFICE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 12 * time.Hour
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 10
	}

	if cfg.Intake.IdentityLength == 0 {
		cfg.Intake.IdentityLength = 8
	}

	if cfg.Directory.Mode == "" {
		cfg.Directory.Mode = "local"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "backoffice.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	validDirectoryModes := map[string]bool{"local": true, "remote": true}
	if !validDirectoryModes[cfg.Directory.Mode] {
		return fmt.Errorf("directory.mode must be 'local' or 'remote', got %q", cfg.Directory.Mode)
	}
	if cfg.Directory.Mode == "remote" && cfg.Directory.Remote.URL == "" {
		return fmt.Errorf("directory.remote.url is required when directory.mode is 'remote'")
	}

	if cfg.Reconcile.Enabled && cfg.Reconcile.Remote.URL == "" {
		return fmt.Errorf("reconcile.remote.url is required when reconcile is enabled")
	}

	if cfg.Intake.IdentityLength < 0 {
		return fmt.Errorf("intake.identity_length must not be negative")
	}

	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	return nil
}
