package codec

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"

	"github.com/rhazera/lingora/pkg/frames"
)

func TestRoundTripWithinQuantizationStep(t *testing.T) {
	samples := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.999, -1}
	chunk := Encode(samples, 24000)
	buf, err := Decode(1, chunk, DecodeConfig{})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if buf.Len() != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), buf.Len())
	}
	out := buf.Channel(0)
	for i, want := range samples {
		if diff := math.Abs(float64(out[i] - want)); diff > 1.0/32768 {
			t.Fatalf("sample %d: expected %f within 1/32768, got %f", i, want, out[i])
		}
	}
}

func TestSilentFrameRoundTrip(t *testing.T) {
	chunk := Encode(make([]float32, 4096), 16000)
	buf, err := Decode(1, chunk, DecodeConfig{})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if buf.Len() != 4096 {
		t.Fatalf("expected 4096 samples, got %d", buf.Len())
	}
	for i, v := range buf.Channel(0) {
		if v != 0 {
			t.Fatalf("expected silence at sample %d, got %f", i, v)
		}
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	f := frames.NewAudioFrame(1, []int16{0, 16384, -16384, 32767}, 16000)
	chunk := EncodeFrame(f)
	if chunk.SampleRate != 16000 {
		t.Fatalf("expected rate tag 16000, got %d", chunk.SampleRate)
	}
	buf, err := Decode(1, chunk, DecodeConfig{})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []float32{0, 0.5, -0.5, float32(32767) / 32768}
	for i, v := range buf.Channel(0) {
		if v != want[i] {
			t.Fatalf("sample %d: expected %f, got %f", i, want[i], v)
		}
	}
}

func TestDecodeRejectsBadBase64(t *testing.T) {
	_, err := Decode(1, Chunk{Data: "not!!base64", SampleRate: 24000}, DecodeConfig{})
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeRejectsOddByteLength(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	_, err := Decode(1, Chunk{Data: data, SampleRate: 24000}, DecodeConfig{})
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError for odd length, got %v", err)
	}
}

func TestDecodeChannelMapping(t *testing.T) {
	chunk := Encode([]float32{0.5, -0.5}, 24000)

	buf, err := Decode(1, chunk, DecodeConfig{Channels: 2})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if buf.Channels() != 2 {
		t.Fatalf("expected 2 channels, got %d", buf.Channels())
	}
	for _, v := range buf.Channel(1) {
		if v != 0 {
			t.Fatalf("expected silent second channel without replicate")
		}
	}

	buf, err = Decode(1, chunk, DecodeConfig{Channels: 2, Replicate: true})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	for i := range buf.Channel(0) {
		if buf.Channel(0)[i] != buf.Channel(1)[i] {
			t.Fatalf("expected replicated channels to match at %d", i)
		}
	}
}

func TestMIMETypeCarriesRate(t *testing.T) {
	c := Chunk{SampleRate: 16000}
	if c.MIMEType() != "audio/pcm;rate=16000" {
		t.Fatalf("unexpected mime type %q", c.MIMEType())
	}
}
