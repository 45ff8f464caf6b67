// Package turn tracks which side of the conversation holds the floor.
package turn

import (
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateThinking:
		return "THINKING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes turn state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// Interrupter cancels in-flight reply playback when the user barges in.
type Interrupter interface {
	Interrupt()
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}

// Tracker is the finite state machine for conversation turns.
type Tracker struct {
	mu           sync.RWMutex
	currentState State

	bargeInThreshold time.Duration
	speakingStart    time.Time

	listeners   []StateListener
	interrupter Interrupter
}

func NewTracker(bargeInThreshold time.Duration, interrupter Interrupter) *Tracker {
	if bargeInThreshold <= 0 {
		bargeInThreshold = 500 * time.Millisecond
	}
	return &Tracker{
		currentState:     StateIdle,
		bargeInThreshold: bargeInThreshold,
		interrupter:      interrupter,
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentState
}

var validTransitions = map[State][]State{
	StateIdle:      {StateListening},
	StateListening: {StateThinking, StateSpeaking, StateIdle},
	StateThinking:  {StateSpeaking, StateListening, StateIdle},
	StateSpeaking:  {StateListening, StateIdle},
}

// Transition moves to a new state with validation.
func (t *Tracker) Transition(state State, reason string) error {
	t.mu.Lock()

	allowed := false
	for _, next := range validTransitions[t.currentState] {
		if next == state {
			allowed = true
			break
		}
	}
	if !allowed {
		err := &InvalidTransitionError{From: t.currentState, To: state}
		t.mu.Unlock()
		return err
	}

	oldState := t.currentState
	t.currentState = state
	if state == StateSpeaking {
		t.speakingStart = time.Now()
	}
	event := StateChange{
		FromState: oldState,
		ToState:   state,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	listeners := make([]StateListener, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l.OnStateChange(event)
	}
	return nil
}

// AddListener registers a listener for state change events.
func (t *Tracker) AddListener(listener StateListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// OnCaptureStarted marks the session live and listening.
func (t *Tracker) OnCaptureStarted() {
	if t.State() == StateIdle {
		_ = t.Transition(StateListening, "capture started")
	}
}

// OnReplyAudio marks the first synthesized chunk of a reply.
func (t *Tracker) OnReplyAudio() {
	switch t.State() {
	case StateListening, StateThinking:
		_ = t.Transition(StateSpeaking, "reply audio started")
	}
}

// OnTurnComplete returns the floor to the user.
func (t *Tracker) OnTurnComplete() {
	if t.State() == StateSpeaking || t.State() == StateThinking {
		_ = t.Transition(StateListening, "turn complete")
	}
}

// OnInterrupted handles the remote interruption signal.
func (t *Tracker) OnInterrupted() {
	if t.State() == StateSpeaking {
		_ = t.Transition(StateListening, "reply interrupted")
	}
}

// OnUserAudio detects local barge-in: sustained user speech while the
// reply is still playing cancels playback ahead of the remote signal.
func (t *Tracker) OnUserAudio(duration time.Duration) {
	t.mu.RLock()
	state := t.currentState
	threshold := t.bargeInThreshold
	interrupter := t.interrupter
	t.mu.RUnlock()

	if state == StateSpeaking && duration > threshold {
		if interrupter != nil {
			interrupter.Interrupt()
		}
		_ = t.Transition(StateListening, "barge-in detected")
	}
}

// OnSessionClosed resets the tracker.
func (t *Tracker) OnSessionClosed() {
	if t.State() != StateIdle {
		_ = t.Transition(StateIdle, "session closed")
	}
}
