package realtime

import (
	"errors"
	"fmt"
	"testing"
)

func TestOutboundQueue_FIFO(t *testing.T) {
	q := newOutboundQueue(10)

	for i := 0; i < 5; i++ {
		env := newEnvelope(fmt.Sprintf("e%d", i), nil)
		if err := q.push(env); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}
	if got := q.depth(); got != 5 {
		t.Errorf("depth = %d, want 5", got)
	}

	batch := q.popBatch(3)
	if len(batch) != 3 {
		t.Fatalf("popBatch returned %d, want 3", len(batch))
	}
	for i, env := range batch {
		want := fmt.Sprintf("e%d", i)
		if env.Type != want {
			t.Errorf("batch[%d].Type = %q, want %q", i, env.Type, want)
		}
	}

	rest := q.popBatch(10)
	if len(rest) != 2 {
		t.Fatalf("popBatch returned %d, want 2", len(rest))
	}
	if rest[0].Type != "e3" || rest[1].Type != "e4" {
		t.Errorf("remaining order = %q, %q, want e3, e4", rest[0].Type, rest[1].Type)
	}
}

func TestOutboundQueue_RejectsWhenFull(t *testing.T) {
	q := newOutboundQueue(2)

	if err := q.push(newEnvelope("a", nil)); err != nil {
		t.Fatalf("push a failed: %v", err)
	}
	if err := q.push(newEnvelope("b", nil)); err != nil {
		t.Fatalf("push b failed: %v", err)
	}

	err := q.push(newEnvelope("c", nil))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	// The rejected newest must not displace queued entries.
	batch := q.popBatch(10)
	if len(batch) != 2 || batch[0].Type != "a" || batch[1].Type != "b" {
		t.Errorf("queue contents = %v, want [a b]", batch)
	}
}

func TestOutboundQueue_RequeueFront(t *testing.T) {
	q := newOutboundQueue(10)
	q.push(newEnvelope("c", nil))
	q.push(newEnvelope("d", nil))

	// An interrupted flush puts its unwritten tail back at the head.
	q.requeueFront([]Envelope{newEnvelope("a", nil), newEnvelope("b", nil)})

	if got := q.depth(); got != 4 {
		t.Fatalf("depth = %d, want 4", got)
	}
	batch := q.popBatch(4)
	want := []string{"a", "b", "c", "d"}
	for i, w := range want {
		if batch[i].Type != w {
			t.Errorf("batch[%d].Type = %q, want %q", i, batch[i].Type, w)
		}
	}
}

func TestOutboundQueue_Clear(t *testing.T) {
	q := newOutboundQueue(4)
	q.push(newEnvelope("a", nil))
	q.push(newEnvelope("b", nil))

	q.clear()
	if got := q.depth(); got != 0 {
		t.Errorf("depth after clear = %d, want 0", got)
	}
	if batch := q.popBatch(4); len(batch) != 0 {
		t.Errorf("popBatch after clear = %v, want empty", batch)
	}

	// Cleared queue accepts new entries up to the same cap.
	for i := 0; i < 4; i++ {
		if err := q.push(newEnvelope("x", nil)); err != nil {
			t.Fatalf("push %d after clear failed: %v", i, err)
		}
	}
	if err := q.push(newEnvelope("y", nil)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}
