package config

import (
	"time"

	"github.com/rickgao/resilient-ws/internal/connection"
)

// Default values for optional configuration fields.
const (
	DefaultMaxRetryCount    = connection.DefaultMaxRetryCount
	DefaultRetryDelay       = connection.DefaultRetryDelay
	DefaultPingInterval     = connection.DefaultPingInterval
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsAddr      = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultOutboxCapacity   = 64
	DefaultOutboxLimit      = 10000
)

// ApplyDefaults fills unset optional fields.
func (c *ClientConfig) ApplyDefaults() {
	// Connection defaults
	if c.Client.MaxRetryCount == nil {
		n := DefaultMaxRetryCount
		c.Client.MaxRetryCount = &n
	}
	if c.Client.RetryDelay == 0 {
		c.Client.RetryDelay = DefaultRetryDelay
	}
	if c.Client.PingInterval == 0 {
		c.Client.PingInterval = DefaultPingInterval
	}
	if c.Client.HandshakeTimeout == 0 {
		c.Client.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Client.WriteTimeout == 0 {
		c.Client.WriteTimeout = DefaultWriteTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Outbox defaults
	if c.Outbox.InitialCapacity == 0 {
		c.Outbox.InitialCapacity = DefaultOutboxCapacity
	}
	if c.Outbox.Limit == 0 {
		c.Outbox.Limit = DefaultOutboxLimit
	}
}
