package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Client is the connection manager for the live-update feed. It owns
// one transport at a time, reconnects with exponential backoff and
// jitter, queues outbound traffic while disconnected, and re-joins
// subscribed channels after every reconnect. All methods are safe for
// concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger

	newTransport func() Transport
	jitter       func() time.Duration

	// connectGroup collapses concurrent connection attempts onto a
	// single dial.
	connectGroup singleflight.Group

	queue      *outboundQueue
	correlator *correlator
	subs       *subscriptionSet
	dispatcher *dispatcher

	// writeMu serializes transport writes and queue mutations, so a
	// reconnect flush finishes before newer sends reach the wire.
	// Lock order: writeMu before mu, never the reverse.
	writeMu sync.Mutex

	mu            sync.Mutex
	transport     Transport
	sessionStop   chan struct{} // closes to stop the pump and heartbeat
	reconnectStop chan struct{} // closes to stop the reconnect loop
	skipReconnect bool          // set by Disconnect, cleared by Connect
	state         connState
	latency       latencyRing

	wg sync.WaitGroup
}

// New creates a Client. The returned client is disconnected; call
// Connect, or let the first Send trigger one.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.NewTransport == nil && cfg.EndpointURL == "" {
		return nil, errors.New("endpoint URL is required")
	}

	c := &Client{
		cfg:        cfg,
		logger:     logger,
		jitter:     reconnectJitter,
		queue:      newOutboundQueue(cfg.MaxQueueSize),
		correlator: newCorrelator(logger),
		subs:       newSubscriptionSet(),
		dispatcher: newDispatcher(logger),
	}
	c.state.currentBackoff = cfg.ReconnectionDelay

	c.newTransport = cfg.NewTransport
	if c.newTransport == nil {
		tcfg := TransportConfig{
			URL:          cfg.EndpointURL,
			DialTimeout:  cfg.DialTimeout,
			WriteTimeout: cfg.WriteTimeout,
			BufferSize:   cfg.BufferSize,
		}
		c.newTransport = func() Transport {
			return NewWebSocketTransport(tcfg, logger)
		}
	}

	return c, nil
}

// Connect establishes the connection. It is a no-op when already
// connected, and concurrent calls share a single underlying attempt.
// On failure the error is returned and, if reconnection is enabled,
// retries continue in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.skipReconnect = false
	c.mu.Unlock()

	ch := c.connectGroup.DoChan("connect", func() (any, error) {
		return nil, c.establish()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Disconnect tears the client down: it stops the heartbeat and any
// scheduled reconnect, rejects all pending requests, closes the
// transport, and clears the queue, subscriptions, and listeners. A
// subsequent Connect starts clean. Blocks until background goroutines
// drain or ctx expires.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.skipReconnect = true
	c.stopReconnectLocked()
	c.stopSessionLocked()
	tr := c.transport
	c.transport = nil
	c.state.connected = false
	c.state.connecting = false
	c.state.reconnecting = false
	c.state.attemptCount = 0
	c.state.currentBackoff = c.cfg.ReconnectionDelay
	c.state.lastConnectedAt = time.Time{}
	c.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	c.correlator.failAll(ErrDisconnected)
	c.queue.clear()
	c.subs.clear()
	c.dispatcher.removeAll()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	c.logger.Info("disconnected")
	return nil
}

// Send emits a fire-and-forget event. While connected the envelope is
// written immediately; while disconnected it is queued up to
// MaxQueueSize and flushed FIFO on the next successful connect. When
// the queue is full the envelope is dropped and counted in
// Metrics.MessagesDropped, so delivery under sustained disconnection
// is lossy. Queueing while idle triggers a background connection
// attempt; an explicit Disconnect stays in force until Connect is
// called again.
func (c *Client) Send(eventType string, data map[string]any) error {
	env := newEnvelope(eventType, data)
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	c.sendEnvelope(env, raw)
	return nil
}

// SendRequest sends an event expecting a reply and waits for the reply
// envelope carrying the same correlation id. A timeout of zero uses
// the configured RequestTimeout. The pending entry is removed whether
// the request resolves, times out, or the caller cancels.
func (c *Client) SendRequest(ctx context.Context, eventType string, data map[string]any, timeout time.Duration) (Envelope, error) {
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}

	env := newEnvelope(eventType, data)
	env.RequestID = uuid.NewString()
	raw, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s request: %w", eventType, err)
	}

	ch := c.correlator.register(env.RequestID)
	c.sendEnvelope(env, raw)

	select {
	case <-ctx.Done():
		c.correlator.remove(env.RequestID)
		return Envelope{}, ctx.Err()
	case <-time.After(timeout):
		c.correlator.remove(env.RequestID)
		return Envelope{}, fmt.Errorf("%s: %w", eventType, ErrRequestTimeout)
	case res := <-ch:
		if res.err != nil {
			return Envelope{}, res.err
		}
		return res.env, nil
	}
}

// JoinChannel declares interest in a channel (e.g. "match:42"). The
// join event follows Send semantics, and membership is replayed after
// every reconnect.
func (c *Client) JoinChannel(id string) error {
	c.subs.add(id)
	return c.Send(TypeChannelJoin, map[string]any{KeyChannel: id})
}

// LeaveChannel withdraws interest in a channel.
func (c *Client) LeaveChannel(id string) error {
	c.subs.remove(id)
	return c.Send(TypeChannelLeave, map[string]any{KeyChannel: id})
}

// On registers fn for an event type and returns its unsubscribe
// function. Handlers run on the client's read loop in registration
// order; a handler that blocks stalls inbound dispatch, including
// request replies.
func (c *Client) On(event string, fn Handler) func() {
	return c.dispatcher.add(event, fn, false)
}

// Once registers fn to fire at most one time.
func (c *Client) Once(event string, fn Handler) func() {
	return c.dispatcher.add(event, fn, true)
}

// RemoveAllListeners drops every registered listener.
func (c *Client) RemoveAllListeners() {
	c.dispatcher.removeAll()
}

// State returns a snapshot of the connection lifecycle.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Connected:       c.state.connected,
		Connecting:      c.state.connecting,
		Reconnecting:    c.state.reconnecting,
		LastConnectedAt: c.state.lastConnectedAt,
		AttemptCount:    c.state.attemptCount,
		CurrentBackoff:  c.state.currentBackoff,
	}
}

// Metrics returns a snapshot of the client's counters and gauges.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	m := Metrics{
		MessagesSent:     c.state.messagesSent,
		MessagesReceived: c.state.messagesReceived,
		MessagesDropped:  c.state.messagesDropped,
		Reconnects:       c.state.reconnects,
		LastPingAt:       c.state.lastPingAt,
		LastPongAt:       c.state.lastPongAt,
		Latency:          c.state.latency,
		AvgLatency:       c.latency.avg(),
	}
	c.mu.Unlock()

	m.QueueDepth = c.queue.depth()
	m.PendingRequests = c.correlator.count()
	m.Subscriptions = c.subs.size()
	return m
}

// establish performs one connection attempt. Runs inside connectGroup.
func (c *Client) establish() error {
	c.mu.Lock()
	if c.state.connected {
		c.mu.Unlock()
		return nil
	}
	if c.skipReconnect {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.state.connecting = true
	c.mu.Unlock()

	tr := c.newTransport()

	dialCtx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	err := tr.Connect(dialCtx)
	cancel()

	if err != nil {
		c.mu.Lock()
		c.state.connecting = false
		c.mu.Unlock()
		c.maybeScheduleReconnect()
		return fmt.Errorf("connect: %w", err)
	}

	if !c.onOpen(tr) {
		return ErrDisconnected
	}
	return nil
}

// onOpen installs the freshly connected transport, flushes the queue,
// and replays channel subscriptions. Returns false if the client was
// torn down while the dial was in flight.
func (c *Client) onOpen(tr Transport) bool {
	// Hold writeMu through the flush so sends issued after the open
	// either land in the queue before it drains or write after it.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.skipReconnect {
		c.mu.Unlock()
		tr.Close()
		return false
	}
	// Stop a reconnect loop still sleeping toward its next attempt.
	// Left running, it would pace retries alongside the loop the next
	// drop schedules, out of reach of Disconnect.
	c.stopReconnectLocked()
	old := c.transport
	c.transport = tr
	resumed := !c.state.lastConnectedAt.IsZero()
	c.state.connected = true
	c.state.connecting = false
	c.state.reconnecting = false
	c.state.attemptCount = 0
	c.state.currentBackoff = c.cfg.ReconnectionDelay
	c.state.lastConnectedAt = time.Now()
	if resumed {
		c.state.reconnects++
	}
	stop := make(chan struct{})
	c.sessionStop = stop
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	c.wg.Add(2)
	go c.pump(tr, stop)
	go c.heartbeatLoop(tr, stop)

	c.flushQueue(tr)
	c.replaySubscriptions(tr)

	if resumed {
		c.logger.Info("reconnected", "url", c.cfg.EndpointURL)
	} else {
		c.logger.Info("connected", "url", c.cfg.EndpointURL)
	}
	return true
}

// maybeScheduleReconnect starts the reconnect loop if reconnection is
// enabled, attempts remain, and no loop is already running.
func (c *Client) maybeScheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.Reconnection || c.skipReconnect || c.state.connected || c.state.reconnecting {
		return
	}
	if c.cfg.ReconnectionAttempts > 0 && c.state.attemptCount >= c.cfg.ReconnectionAttempts {
		return
	}
	c.state.reconnecting = true
	stop := make(chan struct{})
	c.reconnectStop = stop
	c.wg.Add(1)
	go c.reconnectLoop(stop)
}

// reconnectLoop retries the connection with exponential backoff until
// it succeeds, attempts run out, or the client is torn down. The
// attempt counter resets only on a successful open.
func (c *Client) reconnectLoop(stop <-chan struct{}) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if c.state.connected || c.skipReconnect {
			c.state.reconnecting = false
			c.mu.Unlock()
			return
		}
		attempt := c.state.attemptCount
		if c.cfg.ReconnectionAttempts > 0 && attempt >= c.cfg.ReconnectionAttempts {
			c.state.reconnecting = false
			c.mu.Unlock()
			c.logger.Warn("reconnect attempts exhausted", "attempts", attempt)
			return
		}
		backoff := c.backoffFor(attempt)
		c.state.attemptCount++
		c.state.currentBackoff = backoff
		c.mu.Unlock()

		wait := backoff + c.jitter()
		c.logger.Info("reconnect scheduled", "attempt", attempt+1, "wait", wait)

		select {
		case <-stop:
			return
		case <-time.After(wait):
		}

		if err := c.connectShared(); err != nil {
			c.logger.Warn("reconnect attempt failed", "attempt", attempt+1, "error", err)
			continue
		}

		// A nil error can come from joining an attempt that already
		// finished before this connection dropped; verify.
		c.mu.Lock()
		connected := c.state.connected
		c.mu.Unlock()
		if connected {
			return
		}
	}
}

func (c *Client) connectShared() error {
	_, err, _ := c.connectGroup.Do("connect", func() (any, error) {
		return nil, c.establish()
	})
	return err
}

// backoffFor computes min(base * 2^attempt, max). Jitter is added by
// the caller so the stored backoff stays comparable across attempts.
func (c *Client) backoffFor(attempt int) time.Duration {
	d := c.cfg.ReconnectionDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.ReconnectionDelayMax {
			return c.cfg.ReconnectionDelayMax
		}
	}
	if d > c.cfg.ReconnectionDelayMax {
		d = c.cfg.ReconnectionDelayMax
	}
	return d
}

// reconnectJitter spreads simultaneous retries from many clients over
// a uniform [0, 1s) window.
func reconnectJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(time.Second)))
}

// pump delivers inbound transport traffic to the dispatch point until
// the session ends.
func (c *Client) pump(tr Transport, stop <-chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stop:
			return
		case data, ok := <-tr.Messages():
			if !ok {
				c.handleDisconnect(tr, errors.New("message channel closed"))
				return
			}
			c.handleMessage(data)
		case err, ok := <-tr.Errors():
			if !ok || err == nil {
				err = errors.New("connection closed")
			}
			c.handleDisconnect(tr, err)
			return
		}
	}
}

// handleMessage is the single inbound dispatch point: correlated
// replies resolve their pending request and stop; reserved heartbeat
// types are handled internally; everything else fans out to listeners.
func (c *Client) handleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping malformed message", "error", err, "size", len(data))
		return
	}
	if env.Type == "" {
		c.logger.Warn("dropping message without type", "size", len(data))
		return
	}

	c.mu.Lock()
	c.state.messagesReceived++
	c.mu.Unlock()

	if env.RequestID != "" {
		if !c.correlator.resolve(env.RequestID, env) {
			c.logger.Debug("reply for unknown request",
				"request_id", env.RequestID,
				"type", env.Type,
			)
		}
		return
	}

	switch env.Type {
	case TypePong:
		c.recordPong()
	case TypePing:
		c.answerPing(env)
	default:
		c.dispatcher.dispatch(env)
	}
}

// recordPong computes the heartbeat round trip from the last ping sent.
func (c *Client) recordPong() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.lastPongAt = now
	if c.state.lastPingAt.IsZero() {
		return
	}
	rtt := now.Sub(c.state.lastPingAt)
	if rtt < 0 {
		rtt = 0
	}
	c.state.latency = rtt
	c.latency.push(rtt)
}

// answerPing replies to a server-initiated ping. Heartbeat traffic is
// never queued.
func (c *Client) answerPing(env Envelope) {
	pong := newEnvelope(TypePong, map[string]any{"timestamp": env.Timestamp})

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	tr := c.connectedTransport()
	if tr == nil {
		return
	}
	if err := c.writeEnvelope(tr, pong); err != nil {
		c.logger.Debug("pong failed", "error", err)
	}
}

// heartbeatLoop emits a ping every HeartbeatInterval while the session
// lasts. It stops with the session, so no pings are sent or queued
// while disconnected.
func (c *Client) heartbeatLoop(tr Transport, stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now()
			env := Envelope{
				Type:      TypePing,
				Data:      map[string]any{},
				Timestamp: now.UnixMilli(),
			}
			if err := c.writeEnvelope(tr, env); err != nil {
				c.logger.Debug("ping failed", "error", err)
				continue
			}
			c.mu.Lock()
			c.state.lastPingAt = now
			c.mu.Unlock()
		}
	}
}

// handleDisconnect reacts to a dead transport: it marks the client
// disconnected, stops the session, and schedules a reconnect when
// policy allows.
func (c *Client) handleDisconnect(tr Transport, err error) {
	c.mu.Lock()
	if c.transport != tr {
		// A stale session; the active connection already replaced it.
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.state.connected = false
	c.stopSessionLocked()
	c.mu.Unlock()

	tr.Close()
	c.logger.Warn("connection lost", "error", err)
	c.maybeScheduleReconnect()
}

// flushQueue drains queued envelopes to tr in FIFO order, in bursts of
// FlushBatchSize. An interrupted flush requeues the unwritten
// remainder at the head. Caller holds writeMu.
func (c *Client) flushQueue(tr Transport) {
	flushed := 0
	for tr.IsConnected() {
		batch := c.queue.popBatch(c.cfg.FlushBatchSize)
		if len(batch) == 0 {
			break
		}
		for i, env := range batch {
			if err := c.writeEnvelope(tr, env); err != nil {
				c.queue.requeueFront(batch[i:])
				c.logger.Warn("flush interrupted",
					"flushed", flushed,
					"requeued", c.queue.depth(),
					"error", err,
				)
				return
			}
			flushed++
		}
	}
	if flushed > 0 {
		c.logger.Info("flushed outbound queue", "count", flushed)
	}
}

// replaySubscriptions re-joins every subscribed channel, once each.
// Caller holds writeMu.
func (c *Client) replaySubscriptions(tr Transport) {
	channels := c.subs.snapshot()
	if len(channels) == 0 {
		return
	}
	for _, channel := range channels {
		env := newEnvelope(TypeChannelJoin, map[string]any{KeyChannel: channel})
		if err := c.writeEnvelope(tr, env); err != nil {
			c.logger.Warn("channel re-join failed", "channel", channel, "error", err)
			return
		}
	}
	c.logger.Info("re-joined channels", "count", len(channels))
}

// sendEnvelope writes env immediately when connected, otherwise queues
// it. Queue overflow drops the envelope; the loss is logged and
// counted, not returned.
func (c *Client) sendEnvelope(env Envelope, raw []byte) {
	c.writeMu.Lock()

	if tr := c.connectedTransport(); tr != nil {
		err := tr.Send(raw)
		if err == nil {
			c.mu.Lock()
			c.state.messagesSent++
			c.mu.Unlock()
			c.writeMu.Unlock()
			return
		}
		c.logger.Debug("write failed, queueing message", "type", env.Type, "error", err)
	}

	err := c.queue.push(env)
	c.writeMu.Unlock()

	if err != nil {
		c.mu.Lock()
		c.state.messagesDropped++
		c.mu.Unlock()
		c.logger.Warn("outbound queue full, dropping message",
			"type", env.Type,
			"capacity", c.cfg.MaxQueueSize,
		)
		return
	}
	c.maybeAutoConnect()
}

// writeEnvelope marshals and writes env to tr, counting the send.
func (c *Client) writeEnvelope(tr Transport, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := tr.Send(raw); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.messagesSent++
	c.mu.Unlock()
	return nil
}

// maybeAutoConnect starts a background connection attempt after a
// message was queued while the client sat idle. The attempt never
// overrides an explicit Disconnect: unlike Connect, it leaves
// skipReconnect in place, so a client torn down between the queueing
// and the dial stays down.
func (c *Client) maybeAutoConnect() {
	c.mu.Lock()
	idle := !c.state.connected && !c.state.connecting && !c.state.reconnecting && !c.skipReconnect
	c.mu.Unlock()
	if !idle {
		return
	}
	go func() {
		if err := c.connectShared(); err != nil {
			c.logger.Debug("background connect failed", "error", err)
		}
	}()
}

// connectedTransport returns the active transport, or nil while
// disconnected.
func (c *Client) connectedTransport() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.connected {
		return nil
	}
	return c.transport
}

func (c *Client) stopSessionLocked() {
	if c.sessionStop != nil {
		close(c.sessionStop)
		c.sessionStop = nil
	}
}

func (c *Client) stopReconnectLocked() {
	if c.reconnectStop != nil {
		close(c.reconnectStop)
		c.reconnectStop = nil
	}
}
