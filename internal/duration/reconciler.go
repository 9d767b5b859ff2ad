// Package duration settles the single duration number attached to an
// artifact: the measured capture time for live audio, the embedded metadata
// for uploaded files.
package duration

import (
	"context"
	"fmt"
	"time"

	"github.com/Alijeyrad/gotalk-coach/internal/codec"
)

const DefaultProbeTimeout = 5 * time.Second

type Reconciler struct {
	MaxDuration  time.Duration
	ProbeTimeout time.Duration

	// Probe reads embedded duration; codec.Probe when nil.
	Probe func([]byte) (float64, error)
}

// Live converts a measured capture length to seconds within [0, MaxDuration].
func (r *Reconciler) Live(elapsed time.Duration) float64 {
	d := max(elapsed, 0)
	if r.MaxDuration > 0 {
		d = min(d, r.MaxDuration)
	}
	return d.Seconds()
}

// File reads the duration embedded in data. It returns 0 and an error
// matching codec.ErrMetadataUnreadable when the metadata cannot be read,
// the probe times out, or ctx ends first.
func (r *Reconciler) File(ctx context.Context, data []byte) (float64, error) {
	probe := r.Probe
	if probe == nil {
		probe = codec.Probe
	}
	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	resc := make(chan float64, 1)
	errc := make(chan error, 1)
	go func() {
		secs, err := probe(data)
		if err != nil {
			errc <- err
			return
		}
		resc <- secs
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case secs := <-resc:
		if secs < 0 || secs != secs {
			return 0, fmt.Errorf("%w: duration %v", codec.ErrMetadataUnreadable, secs)
		}
		return secs, nil
	case err := <-errc:
		return 0, fmt.Errorf("%w: %w", codec.ErrMetadataUnreadable, err)
	case <-timer.C:
		return 0, fmt.Errorf("%w: probe timed out after %s", codec.ErrMetadataUnreadable, timeout)
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", codec.ErrMetadataUnreadable, ctx.Err())
	}
}
