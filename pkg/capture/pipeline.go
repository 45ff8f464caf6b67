// Package capture frames live microphone audio into fixed-size blocks and
// forwards each block, encoded, to the streaming session.
package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/rhazera/lingora/pkg/codec"
	"github.com/rhazera/lingora/pkg/device"
	"github.com/rhazera/lingora/pkg/frames"
	"github.com/rhazera/lingora/pkg/logging"
)

// SendFunc forwards one encoded block to the transport, along with the raw
// frame for local inspection (amplitude gating). The frame's samples are
// pooled and must not be retained past the call. Sends are fire-and-forget:
// a returned error means the block was dropped, which is accepted data
// loss, not a failure.
type SendFunc func(frames.AudioFrame, codec.Chunk) error

// Pipeline reads blocks from a capture source for the lifetime of a
// session. There is no backpressure from the transport.
type Pipeline struct {
	src    device.Source
	send   SendFunc
	seq    *frames.SeqGen
	logger *slog.Logger

	stopped atomic.Bool
	done    chan struct{}
}

func New(src device.Source, send SendFunc) *Pipeline {
	return &Pipeline{
		src:    src,
		send:   send,
		seq:    frames.NewSeqGen(),
		logger: logging.NewComponentLogger(slog.Default(), "capture"),
		done:   make(chan struct{}),
	}
}

// Start launches the read loop. It must not be called before the streaming
// session reports open, otherwise every block would be dropped on the floor.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.src == nil {
		return errors.New("capture: nil source")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = p.Stop()
	}()
	go p.loop()
	return nil
}

func (p *Pipeline) loop() {
	defer close(p.done)
	blockSize := p.src.BlockSize()
	for !p.stopped.Load() {
		block := frames.AcquireSampleBuf(blockSize)
		if err := p.src.ReadBlock(block); err != nil {
			frames.ReleaseSampleBuf(block)
			if !errors.Is(err, io.EOF) && !p.stopped.Load() {
				p.logger.Warn("capture_read_error", slog.String("error", err.Error()))
			}
			return
		}
		frame := frames.NewAudioFrame(p.seq.Next(), block, p.src.Rate())
		chunk := codec.EncodeFrame(frame)
		err := p.send(frame, chunk)
		frames.ReleaseSampleBuf(block)
		if err != nil {
			// Dropped block; acceptable for real-time audio.
			p.logger.Debug("capture_block_dropped", slog.String("error", err.Error()))
		}
	}
}

// Stop disconnects the processor and releases the source. Idempotent.
func (p *Pipeline) Stop() error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	return p.src.Close()
}

// Done is closed when the read loop has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}
