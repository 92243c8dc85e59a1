// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Storage drivers accepted by StorageDriver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// StorageDriver selects the Store implementation. Empty means postgres
	// when DatabaseURL is set, sqlite otherwise.
	StorageDriver string `koanf:"storage_driver"`

	// DatabaseURL is the postgres connection string.
	DatabaseURL string `koanf:"database_url"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// DBMaxConns caps the postgres pool size.
	DBMaxConns int `koanf:"db_max_conns"`

	// StorageTimeoutMS bounds every storage call.
	StorageTimeoutMS int `koanf:"storage_timeout_ms"`

	// RateLimitWindowMS and RateLimitMax define the per-client fixed window.
	RateLimitWindowMS int `koanf:"rate_limit_window_ms"`
	RateLimitMax      int `koanf:"rate_limit_max"`

	// TrustProxy makes the first X-Forwarded-For entry the client id.
	TrustProxy bool `koanf:"trust_proxy"`

	// CORSOrigin is sent as Access-Control-Allow-Origin.
	CORSOrigin string `koanf:"cors_origin"`

	// CensorNames masks inappropriate words in submitted player names.
	CensorNames bool `koanf:"censor_names"`

	// FeedEnabled mounts /leaderboard/live; FeedQueueSize bounds its backlog.
	FeedEnabled   bool `koanf:"feed_enabled"`
	FeedQueueSize int  `koanf:"feed_queue_size"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":3000",
		SQLitePath:        "runboard.db",
		DBMaxConns:        10,
		StorageTimeoutMS:  5_000,
		RateLimitWindowMS: 60_000,
		RateLimitMax:      15,
		CORSOrigin:        "*",
		CensorNames:       true,
		FeedEnabled:       true,
		FeedQueueSize:     1_024,
	}
}

// Driver resolves the effective storage driver.
func (c *Config) Driver() string {
	if d := strings.ToLower(strings.TrimSpace(c.StorageDriver)); d != "" {
		return d
	}
	if c.DatabaseURL != "" {
		return DriverPostgres
	}
	return DriverSQLite
}

// RateLimitWindow returns the limiter window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

// StorageTimeout returns the per-call storage deadline.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.RateLimitWindowMS <= 0:
		return fmt.Errorf("%w: rate_limit_window_ms must be positive", ErrInvalidConfig)
	case c.RateLimitMax <= 0:
		return fmt.Errorf("%w: rate_limit_max must be positive", ErrInvalidConfig)
	case c.StorageTimeoutMS <= 0:
		return fmt.Errorf("%w: storage_timeout_ms must be positive", ErrInvalidConfig)
	}

	switch c.Driver() {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for the postgres driver", ErrInvalidConfig)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownDriver, c.StorageDriver)
	}
	return nil
}
