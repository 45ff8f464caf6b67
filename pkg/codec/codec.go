// Package codec converts between float audio samples and the wire
// representation used by the streaming speech endpoint: signed 16-bit
// little-endian PCM wrapped in standard base64, with the sample rate carried
// alongside the bytes rather than embedded in them.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/rhazera/lingora/pkg/frames"
)

// Chunk is the wire representation of one audio block.
type Chunk struct {
	Data       string
	SampleRate int
}

// MIMEType returns the declared format tag for the chunk.
func (c Chunk) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", c.SampleRate)
}

// DecodeError reports a malformed inbound chunk. The chunk is dropped and
// the session continues.
type DecodeError struct {
	Cause error
	Msg   string
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return "decode chunk: " + e.Cause.Error()
	}
	return "decode chunk: " + e.Msg
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Encode packs float samples into a base64 s16le chunk. Each sample is
// scaled by 32768 and truncated; out-of-range input wraps and is the
// caller's responsibility to prevent.
func Encode(samples []float32, rate int) Chunk {
	raw := make([]byte, len(samples)*2)
	for i, v := range samples {
		s := int16(int32(v * 32768))
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	return Chunk{
		Data:       base64.StdEncoding.EncodeToString(raw),
		SampleRate: rate,
	}
}

// EncodeFrame packs a captured int16 frame directly, skipping the float
// scaling step.
func EncodeFrame(f frames.AudioFrame) Chunk {
	samples := f.RawSamples()
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	return Chunk{
		Data:       base64.StdEncoding.EncodeToString(raw),
		SampleRate: f.Rate(),
	}
}

// DecodeConfig controls how the single-channel wire payload is mapped onto
// the output buffer.
type DecodeConfig struct {
	// Channels is the output channel count; zero means one.
	Channels int
	// Replicate copies the source into every channel instead of channel 0
	// only.
	Replicate bool
}

// Decode unpacks a chunk into a playback buffer tagged with its arrival
// sequence. Samples are normalized to [-1, 1) by dividing by 32768.
func Decode(seq uint64, c Chunk, cfg DecodeConfig) (*frames.PlaybackBuffer, error) {
	raw, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if len(raw)%2 != 0 {
		return nil, &DecodeError{Msg: fmt.Sprintf("odd byte length %d", len(raw))}
	}
	n := len(raw) / 2
	chCount := cfg.Channels
	if chCount <= 0 {
		chCount = 1
	}
	channels := make([][]float32, chCount)
	for i := range channels {
		channels[i] = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		v := float32(s) / 32768
		channels[0][i] = v
		if cfg.Replicate {
			for ch := 1; ch < chCount; ch++ {
				channels[ch][i] = v
			}
		}
	}
	return frames.NewPlaybackBuffer(seq, channels, c.SampleRate), nil
}
