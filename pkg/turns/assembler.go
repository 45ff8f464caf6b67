// Package turns accumulates partial transcript fragments for both
// directions of a conversation and snapshots them at turn boundaries.
package turns

import (
	"strings"
	"sync"
)

// Turn is one finalized exchange. An empty side means no transcript was
// produced for that direction; callers must not surface empty sides.
type Turn struct {
	Input  string
	Output string
}

// Empty reports whether neither direction produced text.
func (t Turn) Empty() bool {
	return t.Input == "" && t.Output == ""
}

// Assembler holds the two in-flight transcript accumulators. Fragments are
// appended in arrival order; the transport guarantees that matches emission
// order within a turn.
type Assembler struct {
	mu     sync.Mutex
	input  strings.Builder
	output strings.Builder
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// AppendInput appends a captured-speech transcript fragment.
func (a *Assembler) AppendInput(fragment string) {
	a.mu.Lock()
	a.input.WriteString(fragment)
	a.mu.Unlock()
}

// AppendOutput appends a synthesized-speech transcript fragment. The raw
// concatenation is preserved intact so the tutor layer can split the
// correction/reply convention out of it later.
func (a *Assembler) AppendOutput(fragment string) {
	a.mu.Lock()
	a.output.WriteString(fragment)
	a.mu.Unlock()
}

// Finalize snapshots both accumulators trimmed of surrounding whitespace
// and resets them. It is called exactly once per turn-complete signal.
func (a *Assembler) Finalize() Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := Turn{
		Input:  strings.TrimSpace(a.input.String()),
		Output: strings.TrimSpace(a.output.String()),
	}
	a.input.Reset()
	a.output.Reset()
	return t
}

// Pending reports whether any fragment has arrived since the last boundary.
func (a *Assembler) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input.Len() > 0 || a.output.Len() > 0
}
