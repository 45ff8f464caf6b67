// Package device defines the audio hardware boundary: a capture source with
// a fixed block size and rate, and an output with a monotonic clock and
// scheduled playback. Implementations own their lifecycle and must tolerate
// repeated Close.
package device

import (
	"errors"
	"time"

	"github.com/rhazera/lingora/pkg/frames"
)

// ErrPermission is returned when the capture device cannot be acquired.
// It is fatal to session start; there is no automatic retry.
var ErrPermission = errors.New("capture permission denied")

// Source is a live capture stream delivering fixed-size sample blocks.
type Source interface {
	// BlockSize is the fixed number of samples per block.
	BlockSize() int
	// Rate is the capture sample rate.
	Rate() int
	// ReadBlock fills dst (len == BlockSize) with the next block. It
	// returns io.EOF when the stream has ended.
	ReadBlock(dst []int16) error
	// Close releases the device. Idempotent.
	Close() error
}

// Handle is one scheduled playback. Stop after natural completion is a
// tolerated no-op.
type Handle interface {
	Stop()
}

// Output is the playback side of the device.
type Output interface {
	// Now is the monotonic output clock, zero at open.
	Now() time.Duration
	// Play schedules a buffer to begin at start on the output clock and
	// invokes done when it finishes naturally.
	Play(buf *frames.PlaybackBuffer, start time.Duration, done func()) (Handle, error)
	// Close releases the output. Idempotent.
	Close() error
}
