package turn

import (
	"sync"
	"testing"
	"time"
)

type countInterrupter struct {
	mu    sync.Mutex
	count int
}

func (c *countInterrupter) Interrupt() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *countInterrupter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestBargeInThreshold(t *testing.T) {
	interrupter := &countInterrupter{}
	tr := NewTracker(50*time.Millisecond, interrupter)

	tr.OnCaptureStarted()
	tr.OnReplyAudio()
	if tr.State() != StateSpeaking {
		t.Fatalf("expected SPEAKING, got %s", tr.State())
	}

	tr.OnUserAudio(20 * time.Millisecond)
	if interrupter.Count() != 0 {
		t.Fatalf("expected no interruption below threshold")
	}

	tr.OnUserAudio(80 * time.Millisecond)
	if interrupter.Count() != 1 {
		t.Fatalf("expected interruption above threshold")
	}
	if tr.State() != StateListening {
		t.Fatalf("expected LISTENING after barge-in, got %s", tr.State())
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	tr := NewTracker(0, nil)
	if err := tr.Transition(StateSpeaking, "skip listening"); err == nil {
		t.Fatalf("expected invalid transition error")
	}
	if tr.State() != StateIdle {
		t.Fatalf("expected state unchanged, got %s", tr.State())
	}
}

func TestTurnLifecycleNotifiesListeners(t *testing.T) {
	tr := NewTracker(0, nil)
	var mu sync.Mutex
	var changes []StateChange
	tr.AddListener(listenerFunc(func(ev StateChange) {
		mu.Lock()
		changes = append(changes, ev)
		mu.Unlock()
	}))

	tr.OnCaptureStarted()
	tr.OnReplyAudio()
	tr.OnTurnComplete()
	tr.OnSessionClosed()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateListening, StateSpeaking, StateListening, StateIdle}
	if len(changes) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(changes))
	}
	for i, ev := range changes {
		if ev.ToState != want[i] {
			t.Fatalf("transition %d: expected %s, got %s", i, want[i], ev.ToState)
		}
	}
}

func TestInterruptedSignalReturnsToListening(t *testing.T) {
	tr := NewTracker(0, nil)
	tr.OnCaptureStarted()
	tr.OnReplyAudio()
	tr.OnInterrupted()
	if tr.State() != StateListening {
		t.Fatalf("expected LISTENING after interruption, got %s", tr.State())
	}
}

type listenerFunc func(StateChange)

func (f listenerFunc) OnStateChange(ev StateChange) { f(ev) }
