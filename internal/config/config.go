package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/resilient-ws/internal/connection"
)

// ClientConfig is the root configuration for a wsclient instance.
type ClientConfig struct {
	Client  ConnectionConfig `yaml:"client"`
	Log     LogConfig        `yaml:"log"`
	Metrics MetricsConfig    `yaml:"metrics"`
	Outbox  OutboxConfig     `yaml:"outbox"`
}

// ConnectionConfig holds connection manager and transport settings.
type ConnectionConfig struct {
	URL              string            `yaml:"url"`
	MaxRetryCount    *int              `yaml:"max_retry_count"` // nil = default; 0 disables reconnects
	RetryDelay       time.Duration     `yaml:"retry_delay"`
	PingInterval     time.Duration     `yaml:"ping_interval"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration     `yaml:"write_timeout"`
	Headers          map[string]string `yaml:"headers"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// OutboxConfig holds caller-side send queue settings.
type OutboxConfig struct {
	InitialCapacity int `yaml:"initial_capacity"`
	Limit           int `yaml:"limit"` // Oldest message dropped beyond this
}

// ManagerOptions converts the connection section to connection.Options.
// Transport-level fields are applied through WebSocketConfig.
func (c *ConnectionConfig) ManagerOptions() connection.Options {
	opts := connection.DefaultOptions()
	if c.MaxRetryCount != nil {
		opts.MaxRetryCount = *c.MaxRetryCount
	}
	if c.RetryDelay > 0 {
		opts.RetryDelay = c.RetryDelay
	}
	if c.PingInterval > 0 {
		opts.PingInterval = c.PingInterval
	}
	return opts
}

// WebSocketConfig converts the connection section to transport settings.
func (c *ConnectionConfig) WebSocketConfig(logger *slog.Logger) connection.WebSocketConfig {
	cfg := connection.DefaultWebSocketConfig()
	cfg.Logger = logger
	if c.HandshakeTimeout > 0 {
		cfg.HandshakeTimeout = c.HandshakeTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	if len(c.Headers) > 0 {
		cfg.Header = make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			cfg.Header.Set(k, v)
		}
	}
	return cfg
}

// SlogLevel returns the configured log level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
