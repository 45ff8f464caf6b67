package metrics

import (
	"testing"
	"time"
)

func TestAsyncObserverFlushesOnClose(t *testing.T) {
	mem := NewMemoryObserver()
	a := NewAsyncObserver(mem, 16)
	for i := 0; i < 5; i++ {
		a.RecordEvent(MetricsEvent{Name: EventChunkScheduled, Time: time.Now()})
	}
	a.Close()
	if got := len(mem.Named(EventChunkScheduled)); got != 5 {
		t.Fatalf("expected 5 events flushed, got %d", got)
	}
	// Records after close are discarded, not sent.
	a.RecordEvent(MetricsEvent{Name: EventChunkScheduled})
	a.Close()
}

func TestAsyncObserverDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	a := NewAsyncObserver(observerFunc(func(MetricsEvent) { <-block }), 1)
	for i := 0; i < 10; i++ {
		a.RecordEvent(MetricsEvent{Name: EventDecodeError})
	}
	if a.Dropped() == 0 {
		t.Fatalf("expected drops with a full buffer")
	}
	close(block)
	a.Close()
}

type observerFunc func(MetricsEvent)

func (f observerFunc) RecordEvent(ev MetricsEvent) { f(ev) }
