package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrDrainTimeout = errors.New("drain timeout")

// LifecycleRunner blocks in Run until the context is cancelled or Stop is
// called, then drains once with a bounded timeout. Drain errors surface
// from both Run and Stop.
type LifecycleRunner struct {
	state   atomic.Int32
	hooks   Hooks
	drainer Drainer
	timeout time.Duration

	quit     chan struct{}
	quitOnce sync.Once
	stopped  chan struct{}
	stopOnce sync.Once
	stopErr  error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &LifecycleRunner{
		drainer: drainer,
		hooks:   hooks,
		timeout: timeout,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	r.state.Store(int32(StateNew))
	return r
}

func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return errors.New("runner already started")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	PrintBanner()
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.Store(int32(StateRunning))
	select {
	case <-ctx.Done():
	case <-r.quit:
	}
	return r.stop()
}

// Stop requests shutdown and waits for the drain phase. Safe to call
// more than once and from any goroutine.
func (r *LifecycleRunner) Stop() error {
	r.quitOnce.Do(func() { close(r.quit) })
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

// Stopped is closed after the drain phase completes.
func (r *LifecycleRunner) Stopped() <-chan struct{} { return r.stopped }

func (r *LifecycleRunner) stop() error {
	r.stopOnce.Do(func() {
		r.state.Store(int32(StateDraining))
		r.stopErr = r.drain()
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
		close(r.stopped)
	})
	return r.stopErr
}

// drain runs the drainer off the caller's goroutine so a wedged Drain
// cannot block shutdown past the configured timeout.
func (r *LifecycleRunner) drain() error {
	if r.drainer == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() { errCh <- r.drainer.Drain() }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(r.timeout):
		return ErrDrainTimeout
	}
}
