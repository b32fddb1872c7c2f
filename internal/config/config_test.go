package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
endpoint:
  url: wss://feed.example.com/live
  dial_timeout: 5s
connection:
  reconnect_base_delay: 500ms
  reconnect_max_delay: 30s
  reconnect_attempts: 5
  heartbeat_interval: 10s
channels:
  - match:1001
  - team:77
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.URL != "wss://feed.example.com/live" {
		t.Errorf("Endpoint.URL = %q, want %q", cfg.Endpoint.URL, "wss://feed.example.com/live")
	}
	if cfg.Endpoint.DialTimeout != 5*time.Second {
		t.Errorf("Endpoint.DialTimeout = %v, want 5s", cfg.Endpoint.DialTimeout)
	}
	if cfg.Connection.ReconnectBaseDelay != 500*time.Millisecond {
		t.Errorf("Connection.ReconnectBaseDelay = %v, want 500ms", cfg.Connection.ReconnectBaseDelay)
	}
	if cfg.Connection.ReconnectAttempts != 5 {
		t.Errorf("Connection.ReconnectAttempts = %d, want 5", cfg.Connection.ReconnectAttempts)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0] != "match:1001" || cfg.Channels[1] != "team:77" {
		t.Errorf("Channels = %v, want [match:1001 team:77]", cfg.Channels)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_URL", "wss://feed.internal:8443/live")

	yaml := `
endpoint:
  url: ${TEST_FEED_URL}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.URL != "wss://feed.internal:8443/live" {
		t.Errorf("Endpoint.URL = %q, want substituted value", cfg.Endpoint.URL)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
endpoint:
  url: wss://feed.example.com/live
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Endpoint.DialTimeout != DefaultDialTimeout {
		t.Errorf("Endpoint.DialTimeout = %v, want default %v", cfg.Endpoint.DialTimeout, DefaultDialTimeout)
	}
	if cfg.Connection.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Connection.ReconnectBaseDelay = %v, want default %v", cfg.Connection.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Connection.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Connection.ReconnectMaxDelay = %v, want default %v", cfg.Connection.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Connection.MaxQueueSize != DefaultMaxQueueSize {
		t.Errorf("Connection.MaxQueueSize = %d, want default %d", cfg.Connection.MaxQueueSize, DefaultMaxQueueSize)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{}
		cfg.Endpoint.URL = "wss://feed.example.com/live"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Endpoint.URL = "" },
			wantErr: "endpoint.url is required",
		},
		{
			name:    "wrong scheme",
			mutate:  func(c *Config) { c.Endpoint.URL = "https://feed.example.com/live" },
			wantErr: `endpoint.url must use ws or wss scheme, got "https"`,
		},
		{
			name:    "zero base delay",
			mutate:  func(c *Config) { c.Connection.ReconnectBaseDelay = 0 },
			wantErr: "connection.reconnect_base_delay must be > 0",
		},
		{
			name: "max delay below base delay",
			mutate: func(c *Config) {
				c.Connection.ReconnectBaseDelay = 10 * time.Second
				c.Connection.ReconnectMaxDelay = time.Second
			},
			wantErr: "connection.reconnect_max_delay (1s) cannot be less than reconnect_base_delay (10s)",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Connection.ReconnectAttempts = -1 },
			wantErr: "connection.reconnect_attempts must be >= 0 (0 means retry forever)",
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Connection.MaxQueueSize = 0 },
			wantErr: "connection.max_queue_size must be >= 1",
		},
		{
			name:    "empty channel",
			mutate:  func(c *Config) { c.Channels = []string{"match:1", ""} },
			wantErr: "channels[1] must not be empty",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: `metrics.path must start with /, got "metrics"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestRealtimeMapping(t *testing.T) {
	cfg := Config{}
	cfg.Endpoint.URL = "wss://feed.example.com/live"
	cfg.Connection.ReconnectBaseDelay = 2 * time.Second
	cfg.Connection.ReconnectMaxDelay = 20 * time.Second
	cfg.Connection.ReconnectAttempts = 7
	cfg.Connection.MaxQueueSize = 50
	cfg.applyDefaults()

	rc := cfg.Realtime(nil)

	if rc.EndpointURL != cfg.Endpoint.URL {
		t.Errorf("EndpointURL = %q, want %q", rc.EndpointURL, cfg.Endpoint.URL)
	}
	if !rc.Reconnection {
		t.Error("Reconnection should stay enabled")
	}
	if rc.ReconnectionDelay != 2*time.Second {
		t.Errorf("ReconnectionDelay = %v, want 2s", rc.ReconnectionDelay)
	}
	if rc.ReconnectionDelayMax != 20*time.Second {
		t.Errorf("ReconnectionDelayMax = %v, want 20s", rc.ReconnectionDelayMax)
	}
	if rc.ReconnectionAttempts != 7 {
		t.Errorf("ReconnectionAttempts = %d, want 7", rc.ReconnectionAttempts)
	}
	if rc.MaxQueueSize != 50 {
		t.Errorf("MaxQueueSize = %d, want 50", rc.MaxQueueSize)
	}
	if rc.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want default %v", rc.HeartbeatInterval, DefaultHeartbeatInterval)
	}
}

func TestLoadAndValidateRejectsBadConfig(t *testing.T) {
	yaml := `
endpoint:
  url: https://not-a-websocket.example.com
`
	path := writeTempFile(t, yaml)

	if _, err := LoadAndValidate(path); err == nil {
		t.Error("expected LoadAndValidate to reject non-websocket URL")
	}
}

// TestExampleConfig keeps the shipped example file in step with the
// schema; cmd/conntest points at it by default.
func TestExampleConfig(t *testing.T) {
	cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", "client.example.yaml"))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Endpoint.URL != "ws://localhost:8081/live" {
		t.Errorf("Endpoint.URL = %q, want the local echoserver endpoint", cfg.Endpoint.URL)
	}
	if len(cfg.Channels) == 0 {
		t.Error("example config should subscribe to at least one channel")
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
