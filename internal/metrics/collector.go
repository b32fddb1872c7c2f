package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matchday/realtime-go"
)

// Source is the client surface the collector reads. Both snapshots are
// cheap, so they are taken fresh on every scrape.
type Source interface {
	State() realtime.State
	Metrics() realtime.Metrics
}

// Collector exports a feed client's state and counters as Prometheus
// metrics.
type Collector struct {
	source Source

	connected         *prometheus.Desc
	connecting        *prometheus.Desc
	reconnecting      *prometheus.Desc
	reconnectAttempts *prometheus.Desc
	messagesSent      *prometheus.Desc
	messagesReceived  *prometheus.Desc
	messagesDropped   *prometheus.Desc
	reconnects        *prometheus.Desc
	queueDepth        *prometheus.Desc
	pendingRequests   *prometheus.Desc
	subscriptions     *prometheus.Desc
	latency           *prometheus.Desc
	latencyAvg        *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		connected: prometheus.NewDesc(
			"realtime_connected",
			"Whether the client is currently connected (1) or not (0).",
			nil, nil,
		),
		connecting: prometheus.NewDesc(
			"realtime_connecting",
			"Whether a connection attempt is in flight (1) or not (0).",
			nil, nil,
		),
		reconnecting: prometheus.NewDesc(
			"realtime_reconnecting",
			"Whether the reconnect loop is active (1) or not (0).",
			nil, nil,
		),
		reconnectAttempts: prometheus.NewDesc(
			"realtime_reconnect_attempts",
			"Consecutive failed reconnect attempts since the last successful connect.",
			nil, nil,
		),
		messagesSent: prometheus.NewDesc(
			"realtime_messages_sent_total",
			"Total messages written to the connection.",
			nil, nil,
		),
		messagesReceived: prometheus.NewDesc(
			"realtime_messages_received_total",
			"Total well-formed messages received from the connection.",
			nil, nil,
		),
		messagesDropped: prometheus.NewDesc(
			"realtime_messages_dropped_total",
			"Total outbound messages dropped because the offline queue was full.",
			nil, nil,
		),
		reconnects: prometheus.NewDesc(
			"realtime_reconnects_total",
			"Total successful reconnects.",
			nil, nil,
		),
		queueDepth: prometheus.NewDesc(
			"realtime_outbound_queue_depth",
			"Messages currently waiting in the offline queue.",
			nil, nil,
		),
		pendingRequests: prometheus.NewDesc(
			"realtime_pending_requests",
			"Requests currently awaiting replies.",
			nil, nil,
		),
		subscriptions: prometheus.NewDesc(
			"realtime_subscribed_channels",
			"Channels the client is subscribed to.",
			nil, nil,
		),
		latency: prometheus.NewDesc(
			"realtime_heartbeat_latency_seconds",
			"Most recent heartbeat round-trip time.",
			nil, nil,
		),
		latencyAvg: prometheus.NewDesc(
			"realtime_heartbeat_latency_avg_seconds",
			"Heartbeat round-trip time averaged over the rolling sample window.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.connecting
	ch <- c.reconnecting
	ch <- c.reconnectAttempts
	ch <- c.messagesSent
	ch <- c.messagesReceived
	ch <- c.messagesDropped
	ch <- c.reconnects
	ch <- c.queueDepth
	ch <- c.pendingRequests
	ch <- c.subscriptions
	ch <- c.latency
	ch <- c.latencyAvg
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.State()
	m := c.source.Metrics()

	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, boolGauge(st.Connected))
	ch <- prometheus.MustNewConstMetric(c.connecting, prometheus.GaugeValue, boolGauge(st.Connecting))
	ch <- prometheus.MustNewConstMetric(c.reconnecting, prometheus.GaugeValue, boolGauge(st.Reconnecting))
	ch <- prometheus.MustNewConstMetric(c.reconnectAttempts, prometheus.GaugeValue, float64(st.AttemptCount))
	ch <- prometheus.MustNewConstMetric(c.messagesSent, prometheus.CounterValue, float64(m.MessagesSent))
	ch <- prometheus.MustNewConstMetric(c.messagesReceived, prometheus.CounterValue, float64(m.MessagesReceived))
	ch <- prometheus.MustNewConstMetric(c.messagesDropped, prometheus.CounterValue, float64(m.MessagesDropped))
	ch <- prometheus.MustNewConstMetric(c.reconnects, prometheus.CounterValue, float64(m.Reconnects))
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(m.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.pendingRequests, prometheus.GaugeValue, float64(m.PendingRequests))
	ch <- prometheus.MustNewConstMetric(c.subscriptions, prometheus.GaugeValue, float64(m.Subscriptions))
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, m.Latency.Seconds())
	ch <- prometheus.MustNewConstMetric(c.latencyAvg, prometheus.GaugeValue, m.AvgLatency.Seconds())
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Serve exposes collector over HTTP on addr under path. It blocks
// until ctx is cancelled or the server fails.
func Serve(ctx context.Context, addr, path string, collector prometheus.Collector, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("metrics server listening", "addr", addr, "path", path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
