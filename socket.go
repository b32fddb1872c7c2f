package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a single full-duplex message connection. A Transport is
// used for exactly one connection attempt; the Client creates a fresh
// one per attempt.
type Transport interface {
	// Connect establishes the connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Messages returns a channel of raw inbound messages.
	Messages() <-chan []byte

	// Errors returns a channel of connection errors. A received error
	// means the connection is dead.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// wsTransport implements Transport over a gorilla/websocket connection.
type wsTransport struct {
	cfg    TransportConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan []byte
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewWebSocketTransport creates a WebSocket transport. It does not dial
// until Connect is called.
func NewWebSocketTransport(cfg TransportConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultTransportConfig().DialTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultTransportConfig().WriteTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultTransportConfig().BufferSize
	}

	return &wsTransport{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan []byte, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the configured URL and starts the read loop.
func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	go t.readLoop()

	t.logger.Debug("websocket connected", "url", t.cfg.URL)

	return nil
}

// Close gracefully closes the connection. Safe to call more than once.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	conn := t.conn
	t.mu.Unlock()

	// Signal the read loop to stop
	close(t.done)

	if conn != nil {
		// Best-effort close handshake
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}

	return nil
}

// Send writes raw bytes as a single text message.
func (t *wsTransport) Send(data []byte) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return ErrNotConnected
	}
	conn := t.conn
	t.mu.RUnlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the inbound message channel.
func (t *wsTransport) Messages() <-chan []byte {
	return t.messages
}

// Errors returns the connection error channel.
func (t *wsTransport) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *wsTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// readLoop reads messages from the WebSocket into the messages channel.
func (t *wsTransport) readLoop() {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
	}()

	for {
		select {
		case <-t.done:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-t.done:
				return
			default:
				select {
				case t.errors <- err:
				default:
				}
				return
			}
		}

		select {
		case t.messages <- data:
		case <-t.done:
			return
		default:
			t.logger.Warn("message buffer full, dropping message")
		}
	}
}
