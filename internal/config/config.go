package config

import (
	"log/slog"
	"time"

	"github.com/matchday/realtime-go"
)

// Config is the root configuration for a feed client instance.
type Config struct {
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	Connection ConnectionConfig `yaml:"connection"`
	Channels   []string         `yaml:"channels"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// EndpointConfig holds the feed endpoint settings.
type EndpointConfig struct {
	URL          string        `yaml:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`
}

// ConnectionConfig holds reconnection and traffic settings.
type ConnectionConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	ReconnectAttempts  int           `yaml:"reconnect_attempts"` // 0 means retry forever
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	MaxQueueSize       int           `yaml:"max_queue_size"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	FlushBatchSize     int           `yaml:"flush_batch_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Realtime maps the file configuration onto a client Config.
func (c *Config) Realtime(logger *slog.Logger) realtime.Config {
	rc := realtime.DefaultConfig()
	rc.EndpointURL = c.Endpoint.URL
	rc.DialTimeout = c.Endpoint.DialTimeout
	rc.WriteTimeout = c.Endpoint.WriteTimeout
	rc.BufferSize = c.Endpoint.BufferSize
	rc.ReconnectionDelay = c.Connection.ReconnectBaseDelay
	rc.ReconnectionDelayMax = c.Connection.ReconnectMaxDelay
	rc.ReconnectionAttempts = c.Connection.ReconnectAttempts
	rc.HeartbeatInterval = c.Connection.HeartbeatInterval
	rc.MaxQueueSize = c.Connection.MaxQueueSize
	rc.RequestTimeout = c.Connection.RequestTimeout
	rc.FlushBatchSize = c.Connection.FlushBatchSize
	rc.Logger = logger
	return rc
}
