package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDrainer struct {
	calls int
	delay time.Duration
	err   error
}

func (d *fakeDrainer) Drain() error {
	d.calls++
	time.Sleep(d.delay)
	return d.err
}

func TestStopDrainsOnce(t *testing.T) {
	d := &fakeDrainer{}
	r := NewLifecycleRunner(d, Hooks{}, time.Second)

	go func() { _ = r.Run(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	<-r.Stopped()
	if d.calls != 1 {
		t.Fatalf("expected one drain, got %d", d.calls)
	}
	if r.State() != StateStopped {
		t.Fatalf("expected STOPPED, got %s", r.State())
	}
}

func TestDrainErrorSurfaces(t *testing.T) {
	want := errors.New("boom")
	r := NewLifecycleRunner(&fakeDrainer{err: want}, Hooks{}, time.Second)
	go func() { _ = r.Run(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	if err := r.Stop(); !errors.Is(err, want) {
		t.Fatalf("expected drain error, got %v", err)
	}
}

func TestDrainTimeout(t *testing.T) {
	r := NewLifecycleRunner(&fakeDrainer{delay: 200 * time.Millisecond}, Hooks{}, 20*time.Millisecond)
	go func() { _ = r.Run(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	if err := r.Stop(); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
}

func TestDoubleRunRejected(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected second run to be rejected")
	}
	cancel()
	<-r.Stopped()
}
