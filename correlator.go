package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// requestResult is delivered to the goroutine waiting in SendRequest.
type requestResult struct {
	env Envelope
	err error
}

// pendingRequest tracks one in-flight request awaiting its reply.
type pendingRequest struct {
	id        string
	createdAt time.Time
	ch        chan requestResult
}

// correlator matches reply envelopes to in-flight requests by
// correlation id. Each id resolves at most once: the entry is deleted
// under the lock before its channel is written, so a late duplicate
// reply finds nothing and is ignored.
type correlator struct {
	mu      sync.Mutex
	logger  *slog.Logger
	pending map[string]*pendingRequest
}

func newCorrelator(logger *slog.Logger) *correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &correlator{
		logger:  logger,
		pending: make(map[string]*pendingRequest),
	}
}

// register creates a pending entry and returns the channel its reply
// (or teardown error) will arrive on. The channel is buffered so the
// resolver never blocks.
func (c *correlator) register(id string) <-chan requestResult {
	p := &pendingRequest{
		id:        id,
		createdAt: time.Now(),
		ch:        make(chan requestResult, 1),
	}
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()
	return p.ch
}

// resolve completes the request with a reply. Returns false if the id
// is unknown, already resolved, or timed out.
func (c *correlator) resolve(id string, env Envelope) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.ch <- requestResult{env: env}
	return true
}

// remove drops a pending entry without resolving it. Called by the
// waiter on timeout or cancellation.
func (c *correlator) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// failAll rejects every pending request with err. Called on teardown so
// no waiter is left hanging until its timeout.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		c.logger.Debug("rejecting pending request",
			"request_id", p.id,
			"age", time.Since(p.createdAt),
		)
		p.ch <- requestResult{err: err}
	}
}

func (c *correlator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
