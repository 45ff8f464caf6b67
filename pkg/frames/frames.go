package frames

import (
	"sync"
	"time"
)

// AudioFrame is one fixed-length block of signed 16-bit samples read from
// the capture device. Frames are immutable after creation; ownership moves
// to the codec and then to the transport, never back.
type AudioFrame struct {
	seq     uint64
	samples []int16
	rate    int
	pooled  bool
}

func NewAudioFrame(seq uint64, samples []int16, rate int) AudioFrame {
	return AudioFrame{seq: seq, samples: samples, rate: rate}
}

// NewAudioFrameFromPool copies samples into a pooled block. The frame must
// be handed to ReleaseAudioFrame once the encoded bytes are on the wire.
func NewAudioFrameFromPool(seq uint64, samples []int16, rate int) AudioFrame {
	buf := AcquireSampleBuf(len(samples))
	copy(buf, samples)
	return AudioFrame{seq: seq, samples: buf, rate: rate, pooled: true}
}

func (a AudioFrame) Seq() uint64         { return a.seq }
func (a AudioFrame) Rate() int           { return a.rate }
func (a AudioFrame) Len() int            { return len(a.samples) }
func (a AudioFrame) RawSamples() []int16 { return a.samples }

func (a AudioFrame) Samples() []int16 {
	return append([]int16(nil), a.samples...)
}

func (a AudioFrame) Duration() time.Duration {
	if a.rate <= 0 {
		return 0
	}
	return time.Duration(len(a.samples)) * time.Second / time.Duration(a.rate)
}

func ReleaseAudioFrame(a AudioFrame) bool {
	if a.pooled {
		ReleaseSampleBuf(a.samples)
		return true
	}
	return false
}

// PlaybackBuffer is a decoded block of float samples at the output rate,
// tagged with its arrival sequence. It is owned exclusively by the playback
// scheduler from decode until completion or cancellation.
type PlaybackBuffer struct {
	seq      uint64
	channels [][]float32
	rate     int
}

func NewPlaybackBuffer(seq uint64, channels [][]float32, rate int) *PlaybackBuffer {
	return &PlaybackBuffer{seq: seq, channels: channels, rate: rate}
}

func (b *PlaybackBuffer) Seq() uint64   { return b.seq }
func (b *PlaybackBuffer) Rate() int     { return b.rate }
func (b *PlaybackBuffer) Channels() int { return len(b.channels) }

// Channel returns the sample data for one channel without copying.
func (b *PlaybackBuffer) Channel(i int) []float32 {
	if i < 0 || i >= len(b.channels) {
		return nil
	}
	return b.channels[i]
}

func (b *PlaybackBuffer) Len() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

func (b *PlaybackBuffer) Duration() time.Duration {
	if b.rate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.rate)
}

// SeqGen hands out monotonically increasing arrival sequences.
type SeqGen struct {
	mu    sync.Mutex
	value uint64
}

func NewSeqGen() *SeqGen {
	return &SeqGen{}
}

func (g *SeqGen) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value++
	return g.value
}

var sampleBufPool = sync.Pool{
	New: func() any {
		return make([]int16, 0, 4096)
	},
}

func AcquireSampleBuf(size int) []int16 {
	b := sampleBufPool.Get().([]int16)
	if cap(b) < size {
		return make([]int16, size)
	}
	return b[:size]
}

func ReleaseSampleBuf(b []int16) {
	sampleBufPool.Put(b[:0])
}
