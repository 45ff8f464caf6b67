package device

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhazera/lingora/pkg/frames"
)

// MockSource is an in-memory capture source for local testing and
// integration. Blocks are injected with Push.
type MockSource struct {
	blockSize int
	rate      int

	mu     sync.Mutex
	blocks chan []int16
	closed bool
}

func NewMockSource(blockSize, rate int) *MockSource {
	if blockSize <= 0 {
		blockSize = 4096
	}
	if rate <= 0 {
		rate = 16000
	}
	return &MockSource{
		blockSize: blockSize,
		rate:      rate,
		blocks:    make(chan []int16, 64),
	}
}

func (s *MockSource) BlockSize() int { return s.blockSize }
func (s *MockSource) Rate() int      { return s.rate }

func (s *MockSource) ReadBlock(dst []int16) error {
	block, ok := <-s.blocks
	if !ok {
		return io.EOF
	}
	copy(dst, block)
	return nil
}

// Push injects one capture block. Short blocks are zero-padded by the copy.
// The close check and the send share the mutex, so a Push racing Close can
// never hit a closed channel.
func (s *MockSource) Push(block []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.blocks <- block:
	default:
	}
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.blocks)
	}
	return nil
}

// CloseCount-style inspection for teardown tests.
func (s *MockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Scheduled records one Play call on the mock output.
type Scheduled struct {
	Seq      uint64
	Start    time.Duration
	Duration time.Duration
	Stopped  bool
	Done     bool
}

// MockOutput is a manually clocked output device. Tests set the clock with
// Advance; done callbacks fire for buffers whose scheduled end has passed.
type MockOutput struct {
	mu      sync.Mutex
	now     time.Duration
	sched   []*mockHandle
	closed  atomic.Bool
	playErr error
}

func NewMockOutput() *MockOutput {
	return &MockOutput{}
}

type mockHandle struct {
	out     *MockOutput
	seq     uint64
	start   time.Duration
	dur     time.Duration
	done    func()
	stopped bool
	fired   bool
}

func (h *mockHandle) Stop() {
	h.out.mu.Lock()
	h.stopped = true
	h.out.mu.Unlock()
}

func (o *MockOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *MockOutput) Play(buf *frames.PlaybackBuffer, start time.Duration, done func()) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playErr != nil {
		return nil, o.playErr
	}
	h := &mockHandle{out: o, seq: buf.Seq(), start: start, dur: buf.Duration(), done: done}
	o.sched = append(o.sched, h)
	return h, nil
}

func (o *MockOutput) Close() error {
	o.closed.Store(true)
	return nil
}

func (o *MockOutput) Closed() bool { return o.closed.Load() }

// FailPlay makes subsequent Play calls return err.
func (o *MockOutput) FailPlay(err error) {
	o.mu.Lock()
	o.playErr = err
	o.mu.Unlock()
}

// Advance moves the clock forward and fires completion callbacks for every
// unstopped buffer whose scheduled interval has fully elapsed.
func (o *MockOutput) Advance(d time.Duration) {
	o.mu.Lock()
	o.now += d
	var due []func()
	for _, h := range o.sched {
		if h.fired || h.stopped || h.done == nil {
			continue
		}
		if h.start+h.dur <= o.now {
			h.fired = true
			due = append(due, h.done)
		}
	}
	o.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

// Schedule returns a snapshot of every Play call in order.
func (o *MockOutput) Schedule() []Scheduled {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Scheduled, len(o.sched))
	for i, h := range o.sched {
		out[i] = Scheduled{Seq: h.seq, Start: h.start, Duration: h.dur, Stopped: h.stopped, Done: h.fired}
	}
	return out
}
