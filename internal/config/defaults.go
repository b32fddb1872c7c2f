package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDialTimeout        = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultBufferSize         = 256
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultHeartbeatInterval  = 15 * time.Second
	DefaultMaxQueueSize       = 100
	DefaultRequestTimeout     = 10 * time.Second
	DefaultFlushBatchSize     = 32
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *Config) applyDefaults() {
	// Endpoint defaults
	if c.Endpoint.DialTimeout == 0 {
		c.Endpoint.DialTimeout = DefaultDialTimeout
	}
	if c.Endpoint.WriteTimeout == 0 {
		c.Endpoint.WriteTimeout = DefaultWriteTimeout
	}
	if c.Endpoint.BufferSize == 0 {
		c.Endpoint.BufferSize = DefaultBufferSize
	}

	// Connection defaults
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.MaxQueueSize == 0 {
		c.Connection.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.Connection.RequestTimeout == 0 {
		c.Connection.RequestTimeout = DefaultRequestTimeout
	}
	if c.Connection.FlushBatchSize == 0 {
		c.Connection.FlushBatchSize = DefaultFlushBatchSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
