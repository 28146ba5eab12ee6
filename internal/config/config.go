// Package config loads server configuration from defaults, an optional YAML
// file, a .env file and environment variables, in that order of precedence
// (later sources win).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/splitledger/internal/models"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverBadger = "badger"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Storage    StorageConfig    `yaml:"storage"`
	Settlement SettlementConfig `yaml:"settlement"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// StorageConfig selects and locates the storage backend.
type StorageConfig struct {
	// Driver is sqlite, mysql or badger.
	Driver string `yaml:"driver" validate:"oneof=sqlite mysql badger"`

	// DSN is the MySQL data source name.
	DSN string `yaml:"dsn" validate:"required_if=Driver mysql"`

	// Path is the SQLite file or Badger directory.
	Path string `yaml:"path" validate:"required_unless=Driver mysql"`
}

// SettlementConfig bounds the retry of conflicting transactions.
type SettlementConfig struct {
	MaxRetries int           `yaml:"max_retries" validate:"min=1,max=100"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"min=0"`
}

// RateLimitConfig limits inbound requests. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

// TracingConfig toggles OpenTelemetry tracing to stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Addr:     ":8080",
		LogLevel: "info",
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "./data/splitledger.db",
		},
		Settlement: SettlementConfig{
			MaxRetries: 5,
			RetryDelay: 20 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			RPS:   50,
			Burst: 100,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. A .env file in the working directory is loaded if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := models.Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Addr, "SPLITLEDGER_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	c.LogLevel = strings.ToLower(c.LogLevel)
	setString(&c.Storage.Driver, "DB_DRIVER")
	setString(&c.Storage.DSN, "DB_DSN")
	setString(&c.Storage.Path, "DB_PATH")

	if v, ok := lookup("SETTLEMENT_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SETTLEMENT_MAX_RETRIES: %w", err)
		}
		c.Settlement.MaxRetries = n
	}
	if v, ok := lookup("SETTLEMENT_RETRY_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SETTLEMENT_RETRY_DELAY: %w", err)
		}
		c.Settlement.RetryDelay = d
	}
	if v, ok := lookup("RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimit.RPS = f
	}
	if v, ok := lookup("RATE_LIMIT_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimit.Burst = n
	}
	if v, ok := lookup("TRACING_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACING_ENABLED: %w", err)
		}
		c.Tracing.Enabled = b
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
