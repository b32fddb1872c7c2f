package realtime

import (
	"errors"
	"log/slog"
	"time"
)

// Errors
var (
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyClosed  = errors.New("transport already closed")
	ErrQueueFull      = errors.New("outbound queue full")
	ErrRequestTimeout = errors.New("request timeout")
	ErrDisconnected   = errors.New("client disconnected")
)

// Reserved event types. Everything else is application-defined
// (e.g. "match:update", "team:update", "match:stats:get").
const (
	TypePing         = "ping"
	TypePong         = "pong"
	TypeChannelJoin  = "channel:join"
	TypeChannelLeave = "channel:leave"
)

// KeyChannel is the data key carrying the channel id on
// channel:join / channel:leave envelopes.
const KeyChannel = "channel"

// Envelope is the wire format, both directions.
type Envelope struct {
	Type      string         `json:"type"`                // Event name
	Data      map[string]any `json:"data"`                // Event payload
	Timestamp int64          `json:"timestamp"`           // Sender-side send time (ms since epoch)
	RequestID string         `json:"requestId,omitempty"` // Correlation id; replies echo the request's value
}

// newEnvelope builds an outbound envelope stamped with the current time.
func newEnvelope(eventType string, data map[string]any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// TransportConfig configures the WebSocket transport.
type TransportConfig struct {
	URL          string        // WebSocket URL (e.g., wss://live.example.com/realtime)
	DialTimeout  time.Duration // Handshake timeout for the dial
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Inbound message channel buffer size
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// Config configures a Client.
//
// The zero value of Reconnection disables automatic reconnection; start
// from DefaultConfig (which enables it) and override fields as needed.
type Config struct {
	EndpointURL          string        // WebSocket endpoint
	Reconnection         bool          // Reconnect automatically after a drop
	ReconnectionDelay    time.Duration // Base delay between reconnect attempts
	ReconnectionDelayMax time.Duration // Cap for the exponential backoff delay
	ReconnectionAttempts int           // Scheduled retries per outage (0 = unlimited)
	HeartbeatInterval    time.Duration // Ping cadence while connected
	MaxQueueSize         int           // Outbound queue capacity while disconnected
	RequestTimeout       time.Duration // Default SendRequest timeout
	DialTimeout          time.Duration // Connection establishment timeout
	WriteTimeout         time.Duration // Transport write deadline
	FlushBatchSize       int           // Queued messages written per flush burst
	BufferSize           int           // Inbound message channel buffer size

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// NewTransport overrides the transport used for each connection
	// attempt. Nil means a WebSocket transport dialing EndpointURL.
	NewTransport func() Transport
}

// DefaultConfig returns sensible defaults. EndpointURL must still be set.
func DefaultConfig() Config {
	return Config{
		Reconnection:         true,
		ReconnectionDelay:    1 * time.Second,
		ReconnectionDelayMax: 60 * time.Second,
		ReconnectionAttempts: 0,
		HeartbeatInterval:    15 * time.Second,
		MaxQueueSize:         100,
		RequestTimeout:       10 * time.Second,
		DialTimeout:          10 * time.Second,
		WriteTimeout:         5 * time.Second,
		FlushBatchSize:       32,
		BufferSize:           256,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ReconnectionDelay == 0 {
		c.ReconnectionDelay = d.ReconnectionDelay
	}
	if c.ReconnectionDelayMax == 0 {
		c.ReconnectionDelayMax = d.ReconnectionDelayMax
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.FlushBatchSize == 0 {
		c.FlushBatchSize = d.FlushBatchSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
}
