package realtime

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCorrelator_ResolveRoutesById(t *testing.T) {
	cr := newCorrelator(discardLogger())

	chA := cr.register("req-a")
	chB := cr.register("req-b")
	if got := cr.count(); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	if !cr.resolve("req-b", Envelope{Type: "reply", RequestID: "req-b"}) {
		t.Fatal("resolve req-b returned false")
	}
	if !cr.resolve("req-a", Envelope{Type: "reply", RequestID: "req-a"}) {
		t.Fatal("resolve req-a returned false")
	}

	select {
	case res := <-chA:
		if res.err != nil || res.env.RequestID != "req-a" {
			t.Errorf("chA got %+v, want reply for req-a", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on chA")
	}
	select {
	case res := <-chB:
		if res.err != nil || res.env.RequestID != "req-b" {
			t.Errorf("chB got %+v, want reply for req-b", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on chB")
	}

	if got := cr.count(); got != 0 {
		t.Errorf("count after resolve = %d, want 0", got)
	}
}

func TestCorrelator_ResolveUnknownID(t *testing.T) {
	cr := newCorrelator(discardLogger())

	if cr.resolve("never-registered", Envelope{}) {
		t.Error("resolve of unknown id returned true")
	}

	cr.register("req-a")
	cr.remove("req-a")
	if cr.resolve("req-a", Envelope{}) {
		t.Error("resolve after remove returned true")
	}
	if got := cr.count(); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}

func TestCorrelator_ResolveOnlyOnce(t *testing.T) {
	cr := newCorrelator(discardLogger())

	ch := cr.register("req-a")
	if !cr.resolve("req-a", Envelope{Type: "first"}) {
		t.Fatal("first resolve returned false")
	}
	if cr.resolve("req-a", Envelope{Type: "second"}) {
		t.Error("second resolve returned true")
	}

	res := <-ch
	if res.env.Type != "first" {
		t.Errorf("received %q, want first", res.env.Type)
	}
}

func TestCorrelator_FailAll(t *testing.T) {
	cr := newCorrelator(discardLogger())

	chans := []<-chan requestResult{
		cr.register("req-a"),
		cr.register("req-b"),
		cr.register("req-c"),
	}

	cr.failAll(ErrDisconnected)

	for i, ch := range chans {
		select {
		case res := <-ch:
			if !errors.Is(res.err, ErrDisconnected) {
				t.Errorf("pending %d err = %v, want ErrDisconnected", i, res.err)
			}
		case <-time.After(time.Second):
			t.Fatalf("pending %d never failed", i)
		}
	}
	if got := cr.count(); got != 0 {
		t.Errorf("count after failAll = %d, want 0", got)
	}
}
