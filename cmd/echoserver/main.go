// echoserver is a local WebSocket feed for exercising the client. It
// answers pings, echoes requests back on their correlation id, acks
// channel joins, and emits a feed:tick event on an interval.
// Usage: go run ./cmd/echoserver --addr :8081
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matchday/realtime-go"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	path := flag.String("path", "/live", "websocket path")
	tick := flag.Duration("tick", 2*time.Second, "feed:tick interval")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(*path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("upgrade failed", "error", err)
			return
		}
		serveConn(conn, *tick, logger)
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
	}()

	logger.Info("echo server listening", "addr", *addr, "path", *path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// session serializes writes to one client connection.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  *slog.Logger
}

func (s *session) write(env realtime.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func serveConn(conn *websocket.Conn, tick time.Duration, logger *slog.Logger) {
	defer conn.Close()

	id := uuid.NewString()[:8]
	s := &session{conn: conn, logger: logger.With("conn_id", id, "remote", conn.RemoteAddr().String())}
	s.logger.Info("client connected")

	done := make(chan struct{})
	defer close(done)

	// Periodic feed events
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		seq := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				seq++
				env := realtime.Envelope{
					Type:      "feed:tick",
					Data:      map[string]any{"seq": seq},
					Timestamp: time.Now().UnixMilli(),
				}
				if err := s.write(env); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("client disconnected", "error", err)
			return
		}

		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.logger.Warn("malformed frame", "error", err)
			continue
		}
		s.handle(env)
	}
}

func (s *session) handle(env realtime.Envelope) {
	now := time.Now().UnixMilli()

	switch {
	case env.RequestID != "":
		reply := realtime.Envelope{
			Type:      env.Type + ":reply",
			Data:      map[string]any{"echo": env.Data},
			Timestamp: now,
			RequestID: env.RequestID,
		}
		if err := s.write(reply); err != nil {
			s.logger.Warn("reply failed", "type", env.Type, "error", err)
		}

	case env.Type == realtime.TypePing:
		pong := realtime.Envelope{
			Type:      realtime.TypePong,
			Data:      map[string]any{"timestamp": env.Timestamp},
			Timestamp: now,
		}
		if err := s.write(pong); err != nil {
			s.logger.Warn("pong failed", "error", err)
		}

	case env.Type == realtime.TypeChannelJoin:
		channel, _ := env.Data[realtime.KeyChannel].(string)
		s.logger.Info("channel join", "channel", channel)
		ack := realtime.Envelope{
			Type:      "channel:joined",
			Data:      map[string]any{realtime.KeyChannel: channel},
			Timestamp: now,
		}
		if err := s.write(ack); err != nil {
			s.logger.Warn("join ack failed", "channel", channel, "error", err)
		}

	case env.Type == realtime.TypeChannelLeave:
		channel, _ := env.Data[realtime.KeyChannel].(string)
		s.logger.Info("channel leave", "channel", channel)

	default:
		s.logger.Debug("event", "type", env.Type)
	}
}
