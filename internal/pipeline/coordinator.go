// Package pipeline turns a live capture or an uploaded file into one
// self-contained audio artifact with its duration.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Alijeyrad/gotalk-coach/internal/audio"
	"github.com/Alijeyrad/gotalk-coach/internal/codec"
	"github.com/Alijeyrad/gotalk-coach/internal/duration"
	"github.com/Alijeyrad/gotalk-coach/internal/metrics"
	"github.com/Alijeyrad/gotalk-coach/internal/recording"
)

// Artifact is built whole in memory before anyone sees it, and Bytes is
// never modified afterwards.
type Artifact struct {
	ID              string
	Bytes           []byte
	MIMEType        string
	DurationSeconds float64
	// Degraded is set when the capture could not be decoded and the raw
	// chunk stream was forwarded instead of a WAV file.
	Degraded bool
	Source   string // "live" or "file"
}

// Outcome is the end of one live capture.
type Outcome struct {
	Artifact Artifact
	Reason   recording.Reason
}

type Coordinator struct {
	ctrl    *recording.Controller
	dur     *duration.Reconciler
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func New(ctrl *recording.Controller, dur *duration.Reconciler, log *zap.SugaredLogger, m *metrics.Metrics) *Coordinator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{ctrl: ctrl, dur: dur, log: log, metrics: m}
}

// ProduceArtifact builds the artifact for src. For live sources it blocks
// until the capture ends; cancelling ctx ends the capture early but the
// recorded audio is still turned into an artifact.
func (c *Coordinator) ProduceArtifact(ctx context.Context, src audio.Source) (Artifact, error) {
	switch s := src.(type) {
	case *audio.Live:
		out, err := c.StartCapture(ctx, s.Device)
		if err != nil {
			return Artifact{}, err
		}
		o, ok := <-out
		if !ok {
			return Artifact{}, errors.New("capture ended without an artifact")
		}
		return o.Artifact, nil
	case *audio.File:
		return c.UploadFile(ctx, s.Name, s.Data)
	}
	return Artifact{}, fmt.Errorf("unknown audio source %T", src)
}

// StartCapture starts recording from dev. The returned channel delivers one
// Outcome once the capture has stopped and its audio has been encoded.
func (c *Coordinator) StartCapture(ctx context.Context, dev audio.Device) (<-chan Outcome, error) {
	results, err := c.ctrl.Start(ctx, dev)
	if err != nil {
		return nil, err
	}
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, ok := <-results
		if !ok {
			return
		}
		// Encoding runs to completion even when ctx is already done.
		out <- Outcome{Artifact: c.encode(res), Reason: res.Reason}
	}()
	return out, nil
}

// StopCapture ends the running capture. The artifact arrives on the channel
// returned by StartCapture.
func (c *Coordinator) StopCapture() error {
	_, err := c.ctrl.Stop()
	return err
}

func (c *Coordinator) encode(res recording.Result) Artifact {
	a := Artifact{
		ID:              res.SessionID,
		DurationSeconds: c.dur.Live(res.Duration),
		Source:          "live",
	}

	wav, decoded, err := decodeToWAV(res)
	if err != nil {
		c.log.Warnw("forwarding raw capture",
			"session", res.SessionID,
			"format", res.Format.MIMEType,
			"error", err,
		)
		c.metrics.DecodeFailed()
		a.Bytes = bytes.Clone(res.Data)
		a.MIMEType = res.Format.MIMEType
		a.Degraded = true
	} else {
		a.Bytes = wav
		a.MIMEType = codec.MIMEWAV
		c.log.Debugw("capture decoded",
			"session", res.SessionID,
			"audio_seconds", decoded,
			"wall_seconds", a.DurationSeconds,
		)
	}

	c.metrics.ArtifactProduced(a.Source, a.Degraded)
	c.log.Infow("artifact ready",
		"id", a.ID,
		"mime", a.MIMEType,
		"bytes", len(a.Bytes),
		"duration", a.DurationSeconds,
		"degraded", a.Degraded,
	)
	return a
}

// decodeToWAV also returns the length of the decoded audio in seconds.
func decodeToWAV(res recording.Result) ([]byte, float64, error) {
	buf, err := codec.Decode(res.Format, res.Data)
	if err != nil {
		return nil, 0, err
	}
	out, err := codec.EncodeWAV(buf)
	return out, buf.Duration(), err
}

// UploadFile wraps a pre-recorded file. The bytes are forwarded unchanged;
// unreadable metadata, including an empty file, only zeroes the duration.
func (c *Coordinator) UploadFile(ctx context.Context, name string, data []byte) (Artifact, error) {
	f := &audio.File{Name: name, Data: bytes.Clone(data)}

	secs, err := c.dur.File(ctx, f.Data)
	if err != nil {
		c.log.Warnw("file duration unknown", "file", name, "error", err)
		c.metrics.MetadataUnreadable()
	}

	a := Artifact{
		ID:              uuid.NewString(),
		Bytes:           f.Data,
		MIMEType:        f.MIMEType(),
		DurationSeconds: secs,
		Source:          f.Kind(),
	}
	c.metrics.ArtifactProduced(a.Source, false)
	c.log.Infow("artifact ready",
		"id", a.ID,
		"file", name,
		"mime", a.MIMEType,
		"bytes", len(a.Bytes),
		"duration", a.DurationSeconds,
	)
	return a, nil
}
