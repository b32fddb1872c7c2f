package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" {
		return errors.New("endpoint.url is required")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil {
		return fmt.Errorf("endpoint.url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint.url must use ws or wss scheme, got %q", u.Scheme)
	}

	if c.Connection.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be > 0")
	}
	if c.Connection.ReconnectMaxDelay < c.Connection.ReconnectBaseDelay {
		return fmt.Errorf("connection.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
			c.Connection.ReconnectMaxDelay, c.Connection.ReconnectBaseDelay)
	}
	if c.Connection.ReconnectAttempts < 0 {
		return errors.New("connection.reconnect_attempts must be >= 0 (0 means retry forever)")
	}
	if c.Connection.HeartbeatInterval <= 0 {
		return errors.New("connection.heartbeat_interval must be > 0")
	}
	if c.Connection.MaxQueueSize < 1 {
		return errors.New("connection.max_queue_size must be >= 1")
	}
	if c.Connection.RequestTimeout <= 0 {
		return errors.New("connection.request_timeout must be > 0")
	}
	if c.Connection.FlushBatchSize < 1 {
		return errors.New("connection.flush_batch_size must be >= 1")
	}

	for i, channel := range c.Channels {
		if channel == "" {
			return fmt.Errorf("channels[%d] must not be empty", i)
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if c.Metrics.Path == "" || c.Metrics.Path[0] != '/' {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}
