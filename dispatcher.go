package realtime

import (
	"log/slog"
	"sync"
)

// Handler receives inbound envelopes for an event type it was
// registered on.
type Handler func(env Envelope)

type listener struct {
	id   uint64
	fn   Handler
	once bool
}

// dispatcher fans inbound envelopes out to registered listeners.
// Listeners for an event run in registration order; a panic in one is
// logged and does not stop the rest.
type dispatcher struct {
	mu        sync.Mutex
	logger    *slog.Logger
	nextID    uint64
	listeners map[string][]listener
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{
		logger:    logger,
		listeners: make(map[string][]listener),
	}
}

// add registers fn for event and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (d *dispatcher) add(event string, fn Handler, once bool) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[event] = append(d.listeners[event], listener{id: id, fn: fn, once: once})
	d.mu.Unlock()

	return func() { d.remove(event, id) }
}

func (d *dispatcher) remove(event string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ls := d.listeners[event]
	for i, l := range ls {
		if l.id == id {
			d.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(d.listeners[event]) == 0 {
		delete(d.listeners, event)
	}
}

func (d *dispatcher) removeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[string][]listener)
}

// dispatch invokes every listener registered for env.Type. Once
// listeners are unregistered before they run, so they fire at most once
// even if they panic.
func (d *dispatcher) dispatch(env Envelope) {
	d.mu.Lock()
	ls := d.listeners[env.Type]
	snapshot := make([]listener, len(ls))
	copy(snapshot, ls)

	kept := ls[:0:0]
	for _, l := range ls {
		if !l.once {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(d.listeners, env.Type)
	} else {
		d.listeners[env.Type] = kept
	}
	d.mu.Unlock()

	for _, l := range snapshot {
		d.invoke(l, env)
	}
}

func (d *dispatcher) invoke(l listener, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("listener panicked",
				"event", env.Type,
				"panic", r,
			)
		}
	}()
	l.fn(env)
}

func (d *dispatcher) listenerCount(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[event])
}
