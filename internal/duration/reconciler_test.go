package duration

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/gotalk-coach/internal/codec"
)

func TestLive(t *testing.T) {
	r := &Reconciler{MaxDuration: 90 * time.Second}
	assert.Equal(t, 12.5, r.Live(12500*time.Millisecond))
	assert.Equal(t, 90.0, r.Live(2*time.Minute))
	assert.Equal(t, 0.0, r.Live(-time.Second))
}

func TestFileReadsWAV(t *testing.T) {
	wav, err := codec.EncodeWAV(&codec.Buffer{SampleRate: 8000, Samples: [][]float32{make([]float32, 20000)}})
	require.NoError(t, err)

	secs, err := (&Reconciler{}).File(context.Background(), wav)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, secs, 1e-9)
}

func TestFileUnreadable(t *testing.T) {
	secs, err := (&Reconciler{}).File(context.Background(), []byte("not audio at all"))
	assert.ErrorIs(t, err, codec.ErrMetadataUnreadable)
	assert.Zero(t, secs)
}

func TestFileProbeError(t *testing.T) {
	cause := errors.New("truncated header")
	r := &Reconciler{Probe: func([]byte) (float64, error) { return 7, cause }}
	secs, err := r.File(context.Background(), nil)
	assert.ErrorIs(t, err, codec.ErrMetadataUnreadable)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, secs)
}

func TestFileRejectsNaN(t *testing.T) {
	r := &Reconciler{Probe: func([]byte) (float64, error) { return math.NaN(), nil }}
	secs, err := r.File(context.Background(), nil)
	assert.ErrorIs(t, err, codec.ErrMetadataUnreadable)
	assert.Zero(t, secs)
}

func TestFileProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := &Reconciler{
		ProbeTimeout: 20 * time.Millisecond,
		Probe: func([]byte) (float64, error) {
			<-block
			return 1, nil
		},
	}
	secs, err := r.File(context.Background(), nil)
	assert.ErrorIs(t, err, codec.ErrMetadataUnreadable)
	assert.Zero(t, secs)
}

func TestFileContextCanceled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := &Reconciler{
		ProbeTimeout: time.Minute,
		Probe: func([]byte) (float64, error) {
			<-block
			return 1, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	secs, err := r.File(ctx, nil)
	assert.ErrorIs(t, err, codec.ErrMetadataUnreadable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, secs)
}
