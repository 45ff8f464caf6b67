package frames

import (
	"testing"
	"time"
)

func TestAudioFrameDuration(t *testing.T) {
	f := NewAudioFrame(1, make([]int16, 16000), 16000)
	if f.Duration() != time.Second {
		t.Fatalf("expected 1s duration, got %s", f.Duration())
	}
}

func TestPooledFrameRelease(t *testing.T) {
	src := []int16{1, 2, 3, 4}
	f := NewAudioFrameFromPool(1, src, 16000)
	if f.Len() != 4 {
		t.Fatalf("expected pooled copy of 4 samples, got %d", f.Len())
	}
	src[0] = 99
	if f.RawSamples()[0] != 1 {
		t.Fatalf("expected pooled frame isolated from source slice")
	}
	if !ReleaseAudioFrame(f) {
		t.Fatalf("expected pooled frame to release")
	}
	if ReleaseAudioFrame(NewAudioFrame(2, src, 16000)) {
		t.Fatalf("expected non-pooled frame not to release")
	}
}

func TestPlaybackBufferDuration(t *testing.T) {
	b := NewPlaybackBuffer(1, [][]float32{make([]float32, 12000)}, 24000)
	if b.Duration() != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %s", b.Duration())
	}
	if b.Channel(1) != nil {
		t.Fatalf("expected nil for out-of-range channel")
	}
}

func TestSeqGenMonotonic(t *testing.T) {
	g := NewSeqGen()
	prev := uint64(0)
	for i := 0; i < 10; i++ {
		v := g.Next()
		if v <= prev {
			t.Fatalf("expected strictly increasing sequence, got %d after %d", v, prev)
		}
		prev = v
	}
}
