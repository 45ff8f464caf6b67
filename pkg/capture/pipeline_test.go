package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rhazera/lingora/pkg/codec"
	"github.com/rhazera/lingora/pkg/device"
	"github.com/rhazera/lingora/pkg/frames"
)

type chunkCollector struct {
	mu     sync.Mutex
	chunks []codec.Chunk
	err    error
}

func (c *chunkCollector) send(_ frames.AudioFrame, chunk codec.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.chunks = append(c.chunks, chunk)
	return nil
}

func (c *chunkCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestForwardsFixedSizeBlocks(t *testing.T) {
	src := device.NewMockSource(4, 16000)
	col := &chunkCollector{}
	p := New(src, col.send)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	src.Push([]int16{1, 2, 3, 4})
	src.Push([]int16{5, 6, 7, 8})
	waitFor(t, func() bool { return col.count() == 2 })

	col.mu.Lock()
	defer col.mu.Unlock()
	for i, chunk := range col.chunks {
		if chunk.SampleRate != 16000 {
			t.Fatalf("chunk %d: expected rate tag 16000, got %d", i, chunk.SampleRate)
		}
		raw, err := base64.StdEncoding.DecodeString(chunk.Data)
		if err != nil {
			t.Fatalf("chunk %d: bad base64: %v", i, err)
		}
		if len(raw) != 8 {
			t.Fatalf("chunk %d: expected 8 bytes for 4 samples, got %d", i, len(raw))
		}
	}
}

func TestDroppedSendsDoNotStopCapture(t *testing.T) {
	src := device.NewMockSource(2, 16000)
	col := &chunkCollector{err: errors.New("not open")}
	p := New(src, col.send)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	src.Push([]int16{1, 2})
	time.Sleep(20 * time.Millisecond)

	col.mu.Lock()
	col.err = nil
	col.mu.Unlock()
	src.Push([]int16{3, 4})
	waitFor(t, func() bool { return col.count() == 1 })
}

func TestStopIsIdempotentAndReleasesSource(t *testing.T) {
	src := device.NewMockSource(2, 16000)
	p := New(src, (&chunkCollector{}).send)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if !src.Closed() {
		t.Fatalf("expected source released")
	}

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected read loop to exit after stop")
	}
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	src := device.NewMockSource(2, 16000)
	p := New(src, (&chunkCollector{}).send)
	if err := p.Stop(); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("repeat stop: %v", err)
	}
}
