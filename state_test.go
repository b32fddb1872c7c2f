package realtime

import (
	"testing"
	"time"
)

func TestLatencyRing_AverageOverSamples(t *testing.T) {
	var r latencyRing

	if got := r.avg(); got != 0 {
		t.Errorf("avg of empty ring = %v, want 0", got)
	}

	r.push(10 * time.Millisecond)
	r.push(20 * time.Millisecond)
	r.push(30 * time.Millisecond)

	if got := r.avg(); got != 20*time.Millisecond {
		t.Errorf("avg = %v, want 20ms", got)
	}
}

func TestLatencyRing_KeepsLastWindow(t *testing.T) {
	var r latencyRing

	// Fill beyond capacity; only the newest window counts.
	for i := 0; i < latencyWindow; i++ {
		r.push(time.Hour)
	}
	for i := 0; i < latencyWindow; i++ {
		r.push(10 * time.Millisecond)
	}

	if got := r.avg(); got != 10*time.Millisecond {
		t.Errorf("avg = %v, want 10ms after window rolls over", got)
	}
}

func TestLatencyRing_PartialOverwrite(t *testing.T) {
	var r latencyRing

	for i := 0; i < latencyWindow; i++ {
		r.push(10 * time.Millisecond)
	}
	// Half the window replaced by slower samples.
	for i := 0; i < latencyWindow/2; i++ {
		r.push(30 * time.Millisecond)
	}

	if got := r.avg(); got != 20*time.Millisecond {
		t.Errorf("avg = %v, want 20ms", got)
	}
}
