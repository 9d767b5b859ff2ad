// Package audio acquires sample data, either live from a capture device or as
// a pre-recorded file supplied by the user.
package audio

import (
	"context"

	"github.com/Alijeyrad/gotalk-coach/internal/codec"
)

// Chunk is one piece of encoded audio in the format negotiated for a capture.
// Chunks of a session are only meaningful concatenated in arrival order.
type Chunk []byte

// Device is something that can be opened for live capture.
type Device interface {
	Name() string
	// Supports reports whether the device can emit chunks as mimeType.
	Supports(mimeType string) bool
	// Acquire opens the device and starts emitting chunks in format f.
	// Failures match ErrDeviceUnavailable.
	Acquire(ctx context.Context, f codec.Format) (Capture, error)
}

// Capture is an open device. Chunks is closed once Release has flushed the
// final chunk; Release is safe to call more than once. Chunks must be drained
// for the capture to make progress.
type Capture interface {
	Chunks() <-chan Chunk
	Release() error
}

// Source is where the audio for one artifact comes from: *Live or *File.
type Source interface {
	Kind() string
}

// Live captures from a device.
type Live struct {
	Device Device
}

func (*Live) Kind() string { return "live" }

// File is a pre-recorded blob. There is nothing to acquire.
type File struct {
	Name string
	Data []byte
}

func (*File) Kind() string { return "file" }

// MIMEType sniffs the container from the content, ignoring the file name.
func (f *File) MIMEType() string {
	return codec.Sniff(f.Data)
}
