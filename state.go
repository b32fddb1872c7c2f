package realtime

import "time"

// latencyWindow bounds the rolling heartbeat latency history.
const latencyWindow = 50

// State is a snapshot of the connection lifecycle.
type State struct {
	Connected       bool
	Connecting      bool
	Reconnecting    bool
	LastConnectedAt time.Time     // Zero until the first successful open
	AttemptCount    int           // Reconnect attempts scheduled this outage
	CurrentBackoff  time.Duration // Last computed backoff, jitter excluded
}

// Metrics is a snapshot of the client's counters. Counters are
// best-effort and survive Disconnect; gauges reflect the moment of the
// snapshot.
type Metrics struct {
	MessagesSent     uint64
	MessagesReceived uint64
	MessagesDropped  uint64 // Rejected by the outbound queue cap
	Reconnects       uint64

	LastPingAt time.Time
	LastPongAt time.Time
	Latency    time.Duration // Most recent heartbeat round trip
	AvgLatency time.Duration // Average over the last latencyWindow samples

	QueueDepth      int
	PendingRequests int
	Subscriptions   int
}

// connState holds the mutable connection fields, guarded by Client.mu.
// connected and connecting are never both true.
type connState struct {
	connected    bool
	connecting   bool
	reconnecting bool

	lastConnectedAt time.Time
	attemptCount    int
	currentBackoff  time.Duration

	messagesSent     uint64
	messagesReceived uint64
	messagesDropped  uint64
	reconnects       uint64

	lastPingAt time.Time
	lastPongAt time.Time
	latency    time.Duration
}

// latencyRing is a fixed-size rolling window of heartbeat samples.
type latencyRing struct {
	samples [latencyWindow]time.Duration
	next    int
	count   int
}

func (r *latencyRing) push(d time.Duration) {
	r.samples[r.next] = d
	r.next = (r.next + 1) % latencyWindow
	if r.count < latencyWindow {
		r.count++
	}
}

func (r *latencyRing) avg() time.Duration {
	if r.count == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < r.count; i++ {
		sum += r.samples[i]
	}
	return sum / time.Duration(r.count)
}
