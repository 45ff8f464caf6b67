// Package playback schedules decoded reply audio for gapless, in-order
// playback against the output device clock, and cancels the whole queue on
// interruption.
package playback

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rhazera/lingora/pkg/device"
	"github.com/rhazera/lingora/pkg/frames"
	"github.com/rhazera/lingora/pkg/logging"
	"github.com/rhazera/lingora/pkg/metrics"
)

// ErrStale rejects a buffer whose decode finished after the queue was
// cancelled. The caller discards the buffer.
var ErrStale = errors.New("stale playback epoch")

// ErrClosed rejects enqueues after Close.
var ErrClosed = errors.New("scheduler closed")

// Scheduler owns the playback queue. Enqueue runs to completion under one
// lock, so concurrent decodes finishing out of order still schedule in
// exactly the order Enqueue is called.
type Scheduler struct {
	mu     sync.Mutex
	out    device.Output
	next   time.Duration
	active map[uint64]device.Handle
	epoch  uint64
	closed bool

	obs    metrics.Observer
	logger *slog.Logger
}

func New(out device.Output) *Scheduler {
	return &Scheduler{
		out:    out,
		active: make(map[uint64]device.Handle),
		obs:    metrics.NoopObserver{},
		logger: logging.NewComponentLogger(slog.Default(), "playback"),
	}
}

func (s *Scheduler) SetObserver(obs metrics.Observer) {
	if obs == nil {
		return
	}
	s.mu.Lock()
	s.obs = obs
	s.mu.Unlock()
}

// Epoch returns the current cancellation epoch. Callers capture it before
// starting a decode and pass it back to Enqueue.
func (s *Scheduler) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Enqueue schedules one buffer back-to-back with the previous one. If the
// queue has gone idle the buffer starts immediately; a late arrival after an
// underrun also starts immediately, producing an audible gap rather than an
// error. The returned time is the scheduled start on the output clock.
func (s *Scheduler) Enqueue(epoch uint64, buf *frames.PlaybackBuffer) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if epoch != s.epoch {
		s.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventStaleChunk,
			Time: time.Now(),
		})
		return 0, ErrStale
	}

	now := s.out.Now()
	start := s.next
	if now > start {
		if len(s.active) == 0 && s.next > 0 {
			s.logger.Debug("playback_underrun",
				slog.Duration("next_start", s.next),
				slog.Duration("clock", now))
			s.obs.RecordEvent(metrics.MetricsEvent{
				Name:  metrics.EventPlaybackUnderrun,
				Time:  time.Now(),
				Value: (now - s.next).Seconds(),
			})
		}
		start = now
	}

	seq := buf.Seq()
	handle, err := s.out.Play(buf, start, func() { s.finished(epoch, seq) })
	if err != nil {
		return 0, err
	}
	s.active[seq] = handle
	s.next = start + buf.Duration()
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventChunkScheduled,
		Time:  time.Now(),
		Value: buf.Duration().Seconds(),
	})
	return start, nil
}

func (s *Scheduler) finished(epoch, seq uint64) {
	s.mu.Lock()
	if epoch == s.epoch {
		delete(s.active, seq)
	}
	s.mu.Unlock()
}

// CancelAll stops every scheduled buffer, clears the queue and resets
// nextStart to zero so the next Enqueue starts at the current clock time.
// Stopping a buffer that already finished naturally is a no-op.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Scheduler) cancelLocked() {
	for _, h := range s.active {
		h.Stop()
	}
	s.active = make(map[uint64]device.Handle)
	s.next = 0
	s.epoch++
}

// Close cancels the queue and releases the output device. Idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.cancelLocked()
	s.closed = true
	return s.out.Close()
}

// NextStart is the earliest clock time the next buffer may begin.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// ActiveCount reports how many buffers are scheduled or playing.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
