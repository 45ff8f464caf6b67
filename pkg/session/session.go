// Package session owns one live conversation: the streaming client, the
// capture pipeline, the playback scheduler and the transcript assembler,
// with a single teardown path that releases each resource exactly once.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rhazera/lingora/pkg/capture"
	"github.com/rhazera/lingora/pkg/codec"
	"github.com/rhazera/lingora/pkg/device"
	"github.com/rhazera/lingora/pkg/errorsx"
	"github.com/rhazera/lingora/pkg/frames"
	"github.com/rhazera/lingora/pkg/live"
	"github.com/rhazera/lingora/pkg/logging"
	"github.com/rhazera/lingora/pkg/metrics"
	"github.com/rhazera/lingora/pkg/playback"
	"github.com/rhazera/lingora/pkg/turn"
	"github.com/rhazera/lingora/pkg/turns"
)

// Callbacks surface session results to the surrounding application.
type Callbacks struct {
	// OnTurn receives each finalized transcript turn. Sides with no text
	// are empty strings and have already been filtered at the turn level.
	OnTurn func(turns.Turn)
	// OnStateChange observes conversation floor changes.
	OnStateChange func(turn.StateChange)
	// OnFatal fires once, after teardown, for session-fatal errors.
	OnFatal func(error)
}

type Config struct {
	// OutputChannels is the decoded buffer channel count (default 1).
	OutputChannels int
	// ReplicateChannels copies mono source audio into every channel.
	ReplicateChannels bool
	// BargeInThreshold is how much sustained user speech cancels reply
	// playback locally, ahead of the remote interruption signal.
	BargeInThreshold time.Duration
	// SpeechGate is the mean absolute int16 amplitude above which a
	// capture block counts as speech for barge-in accounting.
	SpeechGate int
}

func (c Config) withDefaults() Config {
	if c.OutputChannels <= 0 {
		c.OutputChannels = 1
	}
	if c.SpeechGate <= 0 {
		c.SpeechGate = 500
	}
	return c
}

// Session is the owned aggregate for one conversation.
type Session struct {
	id  string
	cfg Config
	cb  Callbacks

	client  *live.Client
	source  device.Source
	pipe    *capture.Pipeline
	sched   *playback.Scheduler
	asm     *turns.Assembler
	tracker *turn.Tracker
	seq     *frames.SeqGen

	obs    metrics.Observer
	logger *slog.Logger

	mu          sync.Mutex
	speechAccum time.Duration

	closeOnce  sync.Once
	dispatched atomic.Bool
	done       chan struct{}
}

func New(client *live.Client, src device.Source, out device.Output, cfg Config, cb Callbacks) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		cb:     cb,
		client: client,
		source: src,
		sched:  playback.New(out),
		asm:    turns.NewAssembler(),
		seq:    frames.NewSeqGen(),
		obs:    metrics.NoopObserver{},
		logger: logging.NewComponentLogger(slog.Default(), "session"),
		done:   make(chan struct{}),
	}
	s.tracker = turn.NewTracker(cfg.BargeInThreshold, s)
	if cb.OnStateChange != nil {
		s.tracker.AddListener(stateListener{fn: cb.OnStateChange})
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) SetObserver(obs metrics.Observer) {
	if obs == nil {
		return
	}
	s.obs = obs
	s.sched.SetObserver(obs)
}

// Open connects the streaming session, then starts capture. Capture never
// starts before the endpoint acknowledges the setup, so no audio is sent
// into an unopened channel.
func (s *Session) Open(ctx context.Context) error {
	if s.source == nil {
		return errorsx.Wrap(device.ErrPermission, errorsx.ReasonMicPermission)
	}
	if err := s.client.Start(ctx); err != nil {
		s.teardown()
		return err
	}

	s.pipe = capture.New(s.source, s.sendBlock)
	if err := s.pipe.Start(ctx); err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonMicRead)
		s.teardown()
		return err
	}
	s.tracker.OnCaptureStarted()
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventSessionOpen,
		Time: time.Now(),
		Tags: map[string]string{"session_id": s.id},
	})

	s.dispatched.Store(true)
	go s.dispatchLoop()
	return nil
}

// sendBlock is the capture hook: forward the encoded block best-effort and
// keep barge-in accounting from the raw samples.
func (s *Session) sendBlock(frame frames.AudioFrame, chunk codec.Chunk) error {
	s.trackSpeech(frame)
	return s.client.SendAudio(chunk)
}

func (s *Session) trackSpeech(frame frames.AudioFrame) {
	if s.cfg.BargeInThreshold <= 0 {
		return
	}
	var sum int64
	for _, v := range frame.RawSamples() {
		if v < 0 {
			sum -= int64(v)
		} else {
			sum += int64(v)
		}
	}
	speech := frame.Len() > 0 && sum/int64(frame.Len()) > int64(s.cfg.SpeechGate)

	s.mu.Lock()
	if speech {
		s.speechAccum += frame.Duration()
	} else {
		s.speechAccum = 0
	}
	accum := s.speechAccum
	s.mu.Unlock()

	if speech {
		s.tracker.OnUserAudio(accum)
	}
}

// Interrupt cancels all scheduled reply playback. It implements
// turn.Interrupter for local barge-in.
func (s *Session) Interrupt() {
	s.sched.CancelAll()
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventInterruption,
		Time: time.Now(),
		Tags: map[string]string{"session_id": s.id, "origin": "local"},
	})
}

func (s *Session) dispatchLoop() {
	defer close(s.done)
	for ev := range s.client.Events() {
		if ev.Err != nil {
			s.fatal(ev.Err)
			return
		}
		s.dispatch(ev)
	}
	// Remote close: tear down quietly.
	s.teardown()
}

// dispatch handles one server event to completion before the next begins;
// the single consumer goroutine preserves the endpoint's emission order all
// the way into the playback queue.
func (s *Session) dispatch(ev live.ServerEvent) {
	if ev.InputTranscript != "" {
		s.asm.AppendInput(ev.InputTranscript)
	}
	if ev.OutputTranscript != "" {
		s.asm.AppendOutput(ev.OutputTranscript)
	}
	if ev.Interrupted {
		s.sched.CancelAll()
		s.tracker.OnInterrupted()
		s.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventInterruption,
			Time: time.Now(),
			Tags: map[string]string{"session_id": s.id, "origin": "remote"},
		})
	}
	if ev.Audio != nil {
		s.scheduleChunk(*ev.Audio)
	}
	if ev.TurnComplete {
		t := s.asm.Finalize()
		s.tracker.OnTurnComplete()
		s.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventTurnFinalized,
			Time: time.Now(),
			Tags: map[string]string{"session_id": s.id},
		})
		if !t.Empty() && s.cb.OnTurn != nil {
			s.cb.OnTurn(t)
		}
	}
}

// scheduleChunk decodes one inbound chunk and hands it to the scheduler.
// The epoch is captured before decoding so a cancellation racing with the
// decode drops the stale buffer instead of scheduling it into a reset
// queue. A malformed chunk is dropped; the session continues.
func (s *Session) scheduleChunk(chunk codec.Chunk) {
	epoch := s.sched.Epoch()
	buf, err := codec.Decode(s.seq.Next(), chunk, codec.DecodeConfig{
		Channels:  s.cfg.OutputChannels,
		Replicate: s.cfg.ReplicateChannels,
	})
	if err != nil {
		s.logger.Warn("chunk_decode_failed",
			slog.String("session_id", s.id),
			slog.String("reason_code", string(errorsx.ReasonDecode)),
			slog.String("error", err.Error()))
		s.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventDecodeError,
			Time: time.Now(),
			Tags: map[string]string{"session_id": s.id},
		})
		return
	}
	s.tracker.OnReplyAudio()
	if _, err := s.sched.Enqueue(epoch, buf); err != nil {
		if errors.Is(err, playback.ErrStale) || errors.Is(err, playback.ErrClosed) {
			return
		}
		s.logger.Warn("chunk_schedule_failed",
			slog.String("session_id", s.id),
			slog.String("reason_code", string(errorsx.ReasonPlayback)),
			slog.String("error", err.Error()))
	}
}

func (s *Session) fatal(err error) {
	s.logger.Error("session_fatal",
		slog.String("session_id", s.id),
		slog.String("reason_code", string(errorsx.Reason(err))),
		slog.String("error", err.Error()))
	s.teardown()
	if s.cb.OnFatal != nil {
		s.cb.OnFatal(err)
	}
}

// teardown releases every resource exactly once. Safe when resources were
// never acquired and when called repeatedly.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		if s.pipe != nil {
			_ = s.pipe.Stop()
		} else if s.source != nil {
			_ = s.source.Close()
		}
		_ = s.sched.Close()
		_ = s.client.Close()
		s.tracker.OnSessionClosed()
		s.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventSessionClose,
			Time: time.Now(),
			Tags: map[string]string{"session_id": s.id},
		})
	})
}

// Close stops the conversation and releases all resources. Idempotent.
func (s *Session) Close() error {
	s.teardown()
	return nil
}

// Drain closes the session and waits for the dispatch loop to finish.
// A session that never opened has no loop to wait for.
func (s *Session) Drain() error {
	s.teardown()
	if s.dispatched.Load() {
		<-s.done
	}
	return nil
}

// Done is closed when the dispatch loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// State reports the conversation floor.
func (s *Session) State() turn.State { return s.tracker.State() }

// Scheduler exposes the playback queue for inspection.
func (s *Session) Scheduler() *playback.Scheduler { return s.sched }

type stateListener struct {
	fn func(turn.StateChange)
}

func (l stateListener) OnStateChange(ev turn.StateChange) { l.fn(ev) }
