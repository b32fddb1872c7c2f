package realtime

import "sync"

// outboundQueue buffers envelopes while the transport is down.
// Capacity is fixed; a push beyond it is rejected so the queue never
// reorders or silently grows.
type outboundQueue struct {
	mu    sync.Mutex
	max   int
	items []Envelope
}

func newOutboundQueue(max int) *outboundQueue {
	return &outboundQueue{max: max}
}

// push appends env in FIFO position. Returns ErrQueueFull at capacity.
func (q *outboundQueue) push(env Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.max {
		return ErrQueueFull
	}
	q.items = append(q.items, env)
	return nil
}

// popBatch removes and returns up to n envelopes from the front.
func (q *outboundQueue) popBatch(n int) []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || n <= 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]Envelope, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	return batch
}

// requeueFront puts envelopes back at the head, preserving their order
// ahead of anything queued since. Used when a flush is interrupted.
func (q *outboundQueue) requeueFront(envs []Envelope) {
	if len(envs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]Envelope, 0, len(envs)+len(q.items))
	merged = append(merged, envs...)
	merged = append(merged, q.items...)
	q.items = merged
}

func (q *outboundQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *outboundQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
