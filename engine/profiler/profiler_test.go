package profiler

import (
	"testing"
	"time"
)

func TestTickLogsAfterInterval(t *testing.T) {
	p := NewProfiler(time.Hour)
	called := false
	if p.Tick(func() Stats { called = true; return Stats{} }) {
		t.Fatal("logged before the interval elapsed")
	}
	if called {
		t.Fatal("stats collected without logging")
	}

	p = NewProfiler(time.Nanosecond)
	time.Sleep(time.Millisecond)
	if !p.Tick(func() Stats { called = true; return Stats{Scenes: 2} }) {
		t.Fatal("expected stats to be logged")
	}
	if !called {
		t.Fatal("stats callback not called")
	}
	if p.frameCount != 0 {
		t.Fatalf("frame count not reset: %d", p.frameCount)
	}
}

func TestDefaultInterval(t *testing.T) {
	if p := NewProfiler(0); p.updateInterval != time.Second {
		t.Fatalf("interval = %v", p.updateInterval)
	}
}
