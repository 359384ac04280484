/*
Package config loads server configuration.

SOURCES (later wins):
  1. Default()
  2. Config file, YAML or JSON (LoadFromFile)
  3. Environment, LOANLEDGER_* variables (ApplyEnv)

ENVIRONMENT:
  LOANLEDGER_SERVER_PORT              HTTP port
  LOANLEDGER_SERVER_CORS_ORIGINS      comma-separated allowed origins
  LOANLEDGER_DATABASE_DRIVER          sqlite3 | postgres
  LOANLEDGER_DATABASE_DSN             file path or connection string
  LOANLEDGER_LOG_LEVEL                logrus level name
  LOANLEDGER_LOG_FORMAT               json | text
  LOANLEDGER_AUDIT_ENABLED            run the periodic aggregate audit
  LOANLEDGER_AUDIT_SCHEDULE           cron spec, e.g. "@every 1h"
  LOANLEDGER_LEDGER_REOPEN_COMPLETED  allow Completed -> Active
  LOANLEDGER_LEDGER_CAP_OVERPAYMENT   count at most expected per entry
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "LOANLEDGER_"

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `json:"database" yaml:"database" envPrefix:"DATABASE_"`
	Log      LogConfig      `json:"log" yaml:"log" envPrefix:"LOG_"`
	Audit    AuditConfig    `json:"audit" yaml:"audit" envPrefix:"AUDIT_"`
	Ledger   LedgerConfig   `json:"ledger" yaml:"ledger" envPrefix:"LEDGER_"`
}

type ServerConfig struct {
	Port        int      `json:"port" yaml:"port" env:"PORT"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"DRIVER"` // "sqlite3" or "postgres"
	DSN    string `json:"dsn" yaml:"dsn" env:"DSN"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"LEVEL"`
	Format string `json:"format" yaml:"format" env:"FORMAT"` // "json" or "text"
}

type AuditConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Schedule string `json:"schedule" yaml:"schedule" env:"SCHEDULE"`
}

// LedgerConfig carries the ledger's policy switches.
type LedgerConfig struct {
	ReopenCompleted bool `json:"reopen_completed" yaml:"reopen_completed" env:"REOPEN_COMPLETED"`
	CapOverpayment  bool `json:"cap_overpayment" yaml:"cap_overpayment" env:"CAP_OVERPAYMENT"`
}

// Default returns a configuration that runs locally with no file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "loans.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Audit: AuditConfig{
			Enabled:  false,
			Schedule: "@every 1h",
		},
	}
}

// Load builds the configuration from defaults, an optional file and the
// environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		if jerr := json.Unmarshal(data, c); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any LOANLEDGER_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be 'sqlite3' or 'postgres', got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text'")
	}
	if c.Audit.Enabled {
		if _, err := cron.ParseStandard(c.Audit.Schedule); err != nil {
			return fmt.Errorf("audit.schedule: %w", err)
		}
	}
	return nil
}

// SaveToFile writes the configuration as YAML or JSON based on extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
