// conntest connects to a realtime feed endpoint and prints what it
// receives. Usage: go run ./cmd/conntest --config configs/client.example.yaml
//
// Pair it with ./cmd/echoserver for a local end-to-end run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/matchday/realtime-go"
	"github.com/matchday/realtime-go/internal/config"
	"github.com/matchday/realtime-go/internal/metrics"
	"github.com/matchday/realtime-go/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.example.yaml", "path to config file")
	endpoint := flag.String("endpoint", "", "endpoint URL (overrides config)")
	events := flag.String("events", "feed:tick,channel:joined", "comma-separated event types to print")
	verbose := flag.Bool("verbose", false, "debug logging and full event JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Setup logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		cfg.Endpoint.URL = *endpoint
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	client, err := realtime.New(cfg.Realtime(logger))
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	// Console printers for the requested event types
	for _, event := range strings.Split(*events, ",") {
		event = strings.TrimSpace(event)
		if event == "" {
			continue
		}
		client.On(event, printEvent(event, *verbose))
	}

	logger.Info("connecting", "url", cfg.Endpoint.URL, "version", version.String())
	if err := client.Connect(ctx); err != nil {
		logger.Error("initial connect failed, retrying in background", "error", err)
	}

	// Join configured channels; membership survives reconnects.
	for _, channel := range cfg.Channels {
		if err := client.JoinChannel(channel); err != nil {
			logger.Error("failed to join channel", "channel", channel, "error", err)
		} else {
			logger.Info("joined channel", "channel", channel)
		}
	}

	// Round-trip probe
	go func() {
		reply, err := client.SendRequest(ctx, "echo", map[string]any{"sent_at": time.Now().UnixMilli()}, 0)
		if err != nil {
			logger.Warn("echo request failed", "error", err)
			return
		}
		logger.Info("echo reply", "type", reply.Type, "data", reply.Data)
	}()

	// Prometheus endpoint
	collector := metrics.NewCollector(client)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		if err := metrics.Serve(ctx, addr, cfg.Metrics.Path, collector, logger); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := client.State()
				m := client.Metrics()
				logger.Info("stats",
					"connected", st.Connected,
					"reconnecting", st.Reconnecting,
					"attempts", st.AttemptCount,
					"sent", m.MessagesSent,
					"received", m.MessagesReceived,
					"dropped", m.MessagesDropped,
					"reconnects", m.Reconnects,
					"queue_depth", m.QueueDepth,
					"pending", m.PendingRequests,
					"channels", m.Subscriptions,
					"latency", m.Latency,
					"latency_avg", m.AvgLatency,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("disconnect failed", "error", err)
	}

	logger.Info("shutdown complete")
}

func printEvent(event string, verbose bool) realtime.Handler {
	return func(env realtime.Envelope) {
		if verbose {
			data, _ := json.MarshalIndent(env, "", "  ")
			fmt.Printf("[%s] %s\n", strings.ToUpper(event), data)
			return
		}
		fmt.Printf("[%s] ts=%d data=%v\n", strings.ToUpper(event), env.Timestamp, env.Data)
	}
}
