// Package config provides configuration loading for notesd.
//
// Values come from an optional YAML file and NOTESD_* environment variables,
// with environment taking precedence. Anything left unset gets a default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete notesd configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Generation   GenerationConfig   `koanf:"generation"`
	Continuation ContinuationConfig `koanf:"continuation"`
	Coverage     CoverageConfig     `koanf:"coverage"`
	Auth         AuthConfig         `koanf:"auth"`
	Store        StoreConfig        `koanf:"store"`
	Events       EventsConfig       `koanf:"events"`
	Logging      LoggingConfig      `koanf:"logging"`
	Telemetry    TelemetryConfig    `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GenerationConfig selects and configures the completion provider.
// An empty APIKey is not a load error: requests fail with a configuration
// error at runtime instead.
type GenerationConfig struct {
	Provider  string        `koanf:"provider"`
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	APIKey    Secret        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	Burst     int           `koanf:"burst"`
}

// ContinuationConfig bounds the continuation loop and its inputs.
type ContinuationConfig struct {
	MaxAttempts    int `koanf:"max_attempts"`
	TailWindow     int `koanf:"tail_window"`
	MaxNotesChars  int `koanf:"max_notes_chars"`
	MaxSourceChars int `koanf:"max_source_chars"`
	MaxTitleChars  int `koanf:"max_title_chars"`
}

// CoverageConfig holds the coverage warning threshold (0-100).
type CoverageConfig struct {
	WarnThreshold int `koanf:"warn_threshold"`
}

// AuthConfig selects how bearer credentials are verified.
type AuthConfig struct {
	// Mode is "static" (Tokens) or "remote" (UserEndpoint).
	Mode string `koanf:"mode"`
	// Tokens are "owner:token" pairs for static mode.
	Tokens       []string `koanf:"tokens"`
	UserEndpoint string   `koanf:"user_endpoint"`
	// APIKey is sent alongside the caller's credential in remote mode.
	APIKey Secret `koanf:"api_key"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// EventsConfig configures NATS publishing. An empty URL disables events.
type EventsConfig struct {
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig configures OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
	// Endpoint is host:port of the OTLP collector.
	Endpoint string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol string `koanf:"protocol"`
	// TLS must be set for any endpoint that is not on the loopback interface.
	TLS            bool          `koanf:"tls"`
	SampleRate     float64       `koanf:"sample_rate"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// Auth modes.
const (
	AuthModeStatic = "static"
	AuthModeRemote = "remote"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "gateway"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 90 * time.Second
	}
	if cfg.Generation.RateLimit > 0 && cfg.Generation.Burst == 0 {
		cfg.Generation.Burst = 1
	}

	if cfg.Continuation.MaxAttempts == 0 {
		cfg.Continuation.MaxAttempts = 5
	}
	if cfg.Continuation.TailWindow == 0 {
		cfg.Continuation.TailWindow = 2000
	}
	if cfg.Continuation.MaxNotesChars == 0 {
		cfg.Continuation.MaxNotesChars = 200000
	}
	if cfg.Continuation.MaxSourceChars == 0 {
		cfg.Continuation.MaxSourceChars = 100000
	}
	if cfg.Continuation.MaxTitleChars == 0 {
		cfg.Continuation.MaxTitleChars = 500
	}

	if cfg.Coverage.WarnThreshold == 0 {
		cfg.Coverage.WarnThreshold = 60
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthModeStatic
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverSQLite
	}
	if cfg.Store.Path == "" && cfg.Store.Driver == StoreDriverSQLite {
		cfg.Store.Path = "notesd.db"
	}

	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "notes.continued"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 15 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Generation.Provider {
	case "gateway", "openai", "ollama":
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	if c.Generation.RateLimit < 0 {
		return errors.New("generation rate_limit cannot be negative")
	}

	if c.Continuation.MaxAttempts < 1 || c.Continuation.MaxAttempts > 20 {
		return fmt.Errorf("continuation max_attempts must be 1-20, got %d", c.Continuation.MaxAttempts)
	}
	if c.Continuation.TailWindow < 1 {
		return errors.New("continuation tail_window must be positive")
	}
	if c.Continuation.MaxNotesChars < 1 || c.Continuation.MaxSourceChars < 1 || c.Continuation.MaxTitleChars < 1 {
		return errors.New("continuation size limits must be positive")
	}

	if c.Coverage.WarnThreshold < 0 || c.Coverage.WarnThreshold > 100 {
		return fmt.Errorf("coverage warn_threshold must be 0-100, got %d", c.Coverage.WarnThreshold)
	}

	switch c.Auth.Mode {
	case AuthModeStatic:
		for _, pair := range c.Auth.Tokens {
			owner, token, ok := strings.Cut(pair, ":")
			if !ok || owner == "" || token == "" {
				return errors.New("auth tokens must be owner:token pairs")
			}
		}
	case AuthModeRemote:
		if c.Auth.UserEndpoint == "" {
			return errors.New("auth user_endpoint required in remote mode")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store path required for sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	switch c.Telemetry.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
	}
	if c.Telemetry.ExportInterval < 0 {
		return errors.New("telemetry export_interval cannot be negative")
	}

	return nil
}
