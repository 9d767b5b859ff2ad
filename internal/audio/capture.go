package audio

import (
	"context"
	"sync"

	"github.com/jfreymuth/pulse/proto"

	"github.com/Alijeyrad/gotalk-coach/internal/codec"
)

// pcmCapture receives raw S16LE PCM, runs it through the chunk encoder and
// forwards the result. It satisfies pulse.Writer so a record stream can write
// into it directly.
type pcmCapture struct {
	mu     sync.Mutex
	enc    codec.ChunkEncoder
	ch     chan Chunk
	closed bool

	once sync.Once
	done chan struct{}
	stop func() error // stops the producer; nil when there is none
	err  error
}

func newPCMCapture(enc codec.ChunkEncoder, stop func() error) *pcmCapture {
	return &pcmCapture{
		enc:  enc,
		ch:   make(chan Chunk, 16),
		done: make(chan struct{}),
		stop: stop,
	}
}

func (c *pcmCapture) Write(pcm []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Late buffers after release are dropped.
		return len(pcm), nil
	}
	if out := c.enc.Encode(pcm); len(out) > 0 {
		c.ch <- Chunk(out)
	}
	return len(pcm), nil
}

func (c *pcmCapture) Format() byte { return proto.FormatInt16LE }

func (c *pcmCapture) Chunks() <-chan Chunk { return c.ch }

// Release stops the producer, emits the encoder tail and closes Chunks.
func (c *pcmCapture) Release() error {
	c.once.Do(func() {
		if c.stop != nil {
			c.err = c.stop()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.closed = true
		if tail := c.enc.Flush(); len(tail) > 0 {
			c.ch <- Chunk(tail)
		}
		close(c.ch)
		close(c.done)
	})
	return c.err
}

// releaseOnDone releases c when ctx ends before a regular Release.
func (c *pcmCapture) releaseOnDone(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.Release()
	case <-c.done:
	}
}
