package device

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhazera/lingora/pkg/frames"
)

// FileSource reads raw s16le PCM from a file and paces it as if it were a
// live microphone: each ReadBlock sleeps for one block duration before
// returning, so downstream timing matches a real capture stream.
type FileSource struct {
	f         *os.File
	blockSize int
	rate      int
	paced     bool
	closed    atomic.Bool
}

func OpenFileSource(path string, blockSize, rate int, paced bool) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, ErrPermission
		}
		return nil, err
	}
	return &FileSource{f: f, blockSize: blockSize, rate: rate, paced: paced}, nil
}

func (s *FileSource) BlockSize() int { return s.blockSize }
func (s *FileSource) Rate() int      { return s.rate }

func (s *FileSource) ReadBlock(dst []int16) error {
	if s.closed.Load() {
		return io.EOF
	}
	raw := make([]byte, len(dst)*2)
	n, err := io.ReadFull(s.f, raw)
	if err == io.ErrUnexpectedEOF {
		err = nil
	} else if err != nil {
		return err
	}
	for i := 0; i < n/2; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	for i := n / 2; i < len(dst); i++ {
		dst[i] = 0
	}
	if s.paced && s.rate > 0 {
		time.Sleep(time.Duration(len(dst)) * time.Second / time.Duration(s.rate))
	}
	return nil
}

func (s *FileSource) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.f.Close()
	}
	return nil
}

// FileOutput appends scheduled playback to a raw s16le PCM file in start
// order. The clock is wall time since open, which satisfies the scheduler's
// monotonic non-negative requirement.
type FileOutput struct {
	mu      sync.Mutex
	f       *os.File
	opened  time.Time
	timers  []*time.Timer
	closed  atomic.Bool
}

func CreateFileOutput(path string) (*FileOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileOutput{f: f, opened: time.Now()}, nil
}

func (o *FileOutput) Now() time.Duration {
	return time.Since(o.opened)
}

func (o *FileOutput) Play(buf *frames.PlaybackBuffer, start time.Duration, done func()) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed.Load() {
		return noopHandle{}, nil
	}
	ch := buf.Channel(0)
	raw := make([]byte, len(ch)*2)
	for i, v := range ch {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(int32(v*32768))))
	}
	if _, err := o.f.Write(raw); err != nil {
		return nil, err
	}
	var timer *time.Timer
	if done != nil {
		delay := start + buf.Duration() - o.Now()
		if delay < 0 {
			delay = 0
		}
		timer = time.AfterFunc(delay, done)
		o.timers = append(o.timers, timer)
	}
	return &timerHandle{timer: timer}, nil
}

func (o *FileOutput) Close() error {
	if o.closed.CompareAndSwap(false, true) {
		o.mu.Lock()
		for _, t := range o.timers {
			t.Stop()
		}
		o.timers = nil
		o.mu.Unlock()
		return o.f.Close()
	}
	return nil
}

type timerHandle struct {
	timer *time.Timer
}

func (h *timerHandle) Stop() {
	if h.timer != nil {
		h.timer.Stop()
	}
}

type noopHandle struct{}

func (noopHandle) Stop() {}
