package codec

import "fmt"

// Buffer is decoded multi-channel audio. Samples is indexed [channel][frame]
// and nominally lies in [-1, 1]; values outside that range are clamped on
// encode.
type Buffer struct {
	SampleRate int
	Samples    [][]float32
}

func (b *Buffer) NumChannels() int { return len(b.Samples) }

func (b *Buffer) NumFrames() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.NumFrames()) / float64(b.SampleRate)
}

func (b *Buffer) validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidBuffer)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidBuffer, b.SampleRate)
	}
	if len(b.Samples) == 0 || len(b.Samples) > 0xFFFF {
		return fmt.Errorf("%w: channel count %d out of range", ErrInvalidBuffer, len(b.Samples))
	}
	n := len(b.Samples[0])
	for ch, s := range b.Samples {
		if len(s) != n {
			return fmt.Errorf("%w: channel %d has %d frames, want %d", ErrInvalidBuffer, ch, len(s), n)
		}
	}
	return nil
}
