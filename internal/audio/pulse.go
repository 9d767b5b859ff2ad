package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfreymuth/pulse"
	"go.uber.org/zap"

	"github.com/Alijeyrad/gotalk-coach/internal/codec"
)

// PulseDevice captures from the default PulseAudio (or PipeWire-pulse) source.
type PulseDevice struct {
	AppName string
	Log     *zap.SugaredLogger
}

func (d *PulseDevice) Name() string { return "pulseaudio" }

func (d *PulseDevice) Supports(mimeType string) bool { return codec.Supported(mimeType) }

func (d *PulseDevice) log() *zap.SugaredLogger {
	if d.Log == nil {
		return zap.NewNop().Sugar()
	}
	return d.Log
}

// Acquire connects to the server and starts a record stream. The capture is
// released when ctx is done or Release is called, whichever comes first.
func (d *PulseDevice) Acquire(ctx context.Context, f codec.Format) (Capture, error) {
	fail := func(op string, err error) error {
		return &DeviceError{Device: d.Name(), Op: op, Err: err}
	}
	if f.Channels != 1 && f.Channels != 2 {
		return nil, fail("configuring stream", fmt.Errorf("%d channels not supported", f.Channels))
	}
	enc, err := codec.NewChunkEncoder(f)
	if err != nil {
		return nil, fail("configuring stream", err)
	}

	name := d.AppName
	if name == "" {
		name = "GoTalk Coach"
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName(name))
	if err != nil {
		return nil, fail("connecting to PulseAudio", err)
	}

	source, err := client.DefaultSource()
	if err != nil {
		client.Close()
		return nil, fail("resolving default source", err)
	}
	if source == nil {
		client.Close()
		return nil, fail("resolving default source", errors.New("no capture source"))
	}

	var layout pulse.RecordOption = pulse.RecordMono
	if f.Channels == 2 {
		layout = pulse.RecordStereo
	}

	var stream *pulse.RecordStream
	c := newPCMCapture(enc, func() error {
		stream.Stop()
		stream.Close()
		client.Close()
		return nil
	})
	stream, err = client.NewRecord(c,
		layout,
		pulse.RecordSampleRate(f.SampleRate),
		pulse.RecordSource(source),
		pulse.RecordMediaName(name),
	)
	if err != nil {
		client.Close()
		return nil, fail("creating record stream", err)
	}

	stream.Start()
	d.log().Infow("capture started",
		"source", source.Name(),
		"format", f.MIMEType,
		"rate", f.SampleRate,
		"channels", f.Channels,
	)

	go c.releaseOnDone(ctx)
	return c, nil
}
