// Package recording runs live capture sessions: it negotiates a chunk format
// with the device, collects chunks in order and stops the session manually,
// on context cancellation, or when the duration cap is reached.
package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Alijeyrad/gotalk-coach/internal/audio"
	"github.com/Alijeyrad/gotalk-coach/internal/codec"
	"github.com/Alijeyrad/gotalk-coach/internal/metrics"
)

const (
	DefaultMaxDuration = 90 * time.Second
	DefaultTick        = time.Second
)

// DefaultPreferences lists chunk formats from most to least preferred.
var DefaultPreferences = []string{codec.MIMEFLAC, codec.MIMEMuLaw, codec.MIMEL16}

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

type State int

const (
	Idle State = iota
	Recording
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reason says why a session ended.
type Reason string

const (
	ReasonManual      Reason = "manual"
	ReasonMaxDuration Reason = "max_duration"
	ReasonCanceled    Reason = "canceled"
)

// Session is a snapshot of the running capture.
type Session struct {
	ID        string
	Elapsed   int // ticks since start
	StartedAt time.Time
	Format    codec.Format
}

// Result is what a finished session produced. Data is the concatenation of
// every chunk in arrival order.
type Result struct {
	SessionID string
	Format    codec.Format
	Data      []byte
	Duration  time.Duration
	Reason    Reason
}

type Options struct {
	MaxDuration time.Duration // capped at DefaultMaxDuration
	Tick        time.Duration
	Preferences []string // chunk MIME types; audio/L16 is always appended as a fallback
	SampleRate  int
	Channels    int

	Clock   Clock
	Log     *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Controller owns at most one capture session at a time.
type Controller struct {
	opts  Options
	limit int // ticks until auto-stop

	mu      sync.Mutex
	state   State
	session *session
}

type session struct {
	Session
	capture   audio.Capture
	ticker    Ticker
	cancel    context.CancelFunc
	stopped   bool
	collected chan []byte
	results   chan Result
}

func NewController(opts Options) *Controller {
	if opts.MaxDuration <= 0 || opts.MaxDuration > DefaultMaxDuration {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if len(opts.Preferences) == 0 {
		opts.Preferences = DefaultPreferences
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	limit := int(opts.MaxDuration / opts.Tick)
	if limit < 1 {
		limit = 1
	}
	return &Controller{opts: opts, limit: limit}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the running session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return c.session.Session, true
}

// Negotiate picks the first preferred format dev supports, falling back to
// audio/L16.
func (c *Controller) Negotiate(dev audio.Device) codec.Format {
	f := codec.Format{MIMEType: codec.MIMEL16, SampleRate: c.opts.SampleRate, Channels: c.opts.Channels}
	for _, p := range c.opts.Preferences {
		if dev.Supports(p) {
			f.MIMEType = p
			break
		}
	}
	return f
}

// Start acquires dev and begins a session. The returned channel receives
// exactly one Result when the session ends, however it ends, and is then
// closed. Cancelling ctx ends the session with ReasonCanceled.
func (c *Controller) Start(ctx context.Context, dev audio.Device) (<-chan Result, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	// Recording without a session while the device opens.
	c.state = Recording
	c.mu.Unlock()

	f := c.Negotiate(dev)
	sctx, cancel := context.WithCancel(ctx)
	capture, err := dev.Acquire(sctx, f)
	if err != nil {
		cancel()
		return nil, c.fail(dev, err)
	}

	s := &session{
		Session: Session{
			ID:        uuid.NewString(),
			StartedAt: c.opts.Clock.Now(),
			Format:    f,
		},
		capture:   capture,
		ticker:    c.opts.Clock.NewTicker(c.opts.Tick),
		cancel:    cancel,
		collected: make(chan []byte, 1),
		results:   make(chan Result, 1),
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	go collect(capture.Chunks(), s.collected)
	go c.run(sctx, s)

	c.opts.Metrics.SessionStarted(codec.BaseMIME(f.MIMEType))
	c.opts.Log.Infow("capture started",
		"session", s.ID,
		"device", dev.Name(),
		"format", f.MIMEType,
		"max_duration", c.opts.MaxDuration,
	)
	return s.results, nil
}

// fail reports an acquisition error from the Failed state, then returns the
// controller to Idle.
func (c *Controller) fail(dev audio.Device, err error) error {
	c.mu.Lock()
	c.state = Failed
	c.mu.Unlock()

	c.opts.Log.Warnw("capture device unavailable",
		"device", dev.Name(),
		"state", c.State().String(),
		"error", err,
	)
	c.opts.Metrics.DeviceUnavailable()

	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()

	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		err = &audio.DeviceError{Device: dev.Name(), Op: "acquiring", Err: err}
	}
	return fmt.Errorf("starting capture: %w", err)
}

// Stop ends the running session and returns its Result, which is also
// delivered on the channel returned by Start.
func (c *Controller) Stop() (Result, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return Result{}, ErrNotRecording
	}
	return c.finish(s, ReasonManual)
}

// collect is the only reader of a session's chunks.
func collect(chunks <-chan audio.Chunk, out chan<- []byte) {
	var data []byte
	for ch := range chunks {
		data = append(data, ch...)
	}
	out <- data
}

func (c *Controller) run(ctx context.Context, s *session) {
	for {
		select {
		case <-s.ticker.C():
			c.mu.Lock()
			if s.stopped {
				c.mu.Unlock()
				return
			}
			s.Elapsed++
			full := s.Elapsed >= c.limit
			c.mu.Unlock()
			if full {
				c.finish(s, ReasonMaxDuration) //nolint:errcheck
				return
			}
		case <-ctx.Done():
			// A no-op when Stop already ran, since finish cancels ctx.
			c.finish(s, ReasonCanceled) //nolint:errcheck
			return
		}
	}
}

// finish runs the stop path once per session.
func (c *Controller) finish(s *session, reason Reason) (Result, error) {
	c.mu.Lock()
	if s.stopped || c.session != s {
		c.mu.Unlock()
		return Result{}, ErrNotRecording
	}
	s.stopped = true
	s.ticker.Stop()
	s.cancel()
	end := c.opts.Clock.Now()
	c.mu.Unlock()

	if err := s.capture.Release(); err != nil {
		c.opts.Log.Warnw("releasing capture device", "session", s.ID, "error", err)
	}
	data := <-s.collected

	res := Result{
		SessionID: s.ID,
		Format:    s.Format,
		Data:      data,
		Duration:  clamp(end.Sub(s.StartedAt), 0, c.opts.MaxDuration),
		Reason:    reason,
	}

	c.mu.Lock()
	c.session = nil
	c.state = Idle
	c.mu.Unlock()

	c.opts.Metrics.SessionStopped(string(reason), res.Duration)
	c.opts.Log.Infow("capture stopped",
		"session", s.ID,
		"reason", reason,
		"duration", res.Duration,
		"bytes", len(data),
	)

	s.results <- res
	close(s.results)
	return res, nil
}

func clamp(d, lo, hi time.Duration) time.Duration {
	return max(lo, min(d, hi))
}
