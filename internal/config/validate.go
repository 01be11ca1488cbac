package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if err := c.Client.validate("client"); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return errors.New("metrics.addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
		}
	}

	if c.Outbox.InitialCapacity < 1 {
		return errors.New("outbox.initial_capacity must be >= 1")
	}
	if c.Outbox.Limit < 0 {
		return errors.New("outbox.limit must be >= 0")
	}

	return nil
}

func (c *ConnectionConfig) validate(prefix string) error {
	if c.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%s.url is invalid: %w", prefix, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s.url scheme must be ws or wss, got %q", prefix, u.Scheme)
	}
	if c.MaxRetryCount != nil && *c.MaxRetryCount < 0 {
		return fmt.Errorf("%s.max_retry_count must be >= 0", prefix)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%s.retry_delay must be >= 0", prefix)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("%s.ping_interval must be > 0", prefix)
	}
	return nil
}
