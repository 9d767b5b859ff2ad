// Package analysis submits audio artifacts to the speaking-coach service and
// decodes its report.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Alijeyrad/gotalk-coach/internal/codec"
	"github.com/Alijeyrad/gotalk-coach/internal/metrics"
	"github.com/Alijeyrad/gotalk-coach/internal/pipeline"
)

// Report is the service's answer for one recording.
type Report struct {
	RawTranscript string  `json:"raw_transcript"`
	Metrics       Metrics `json:"metrics"`
	AIFeedback    string  `json:"ai_feedback"`
}

type Metrics struct {
	WPM             float64        `json:"wpm"`
	Confidence      float64        `json:"confidence"`
	Clarity         float64        `json:"clarity"`
	TotalWords      int            `json:"total_words"`
	FillerTotal     int            `json:"filler_total"`
	FillerBreakdown map[string]int `json:"filler_breakdown"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned %d: %s", e.Code, e.Body)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int // applies to idempotent requests only
	// RetryWait is the initial backoff between retries.
	RetryWait time.Duration
}

type Client struct {
	http    *resty.Client
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, log *zap.SugaredLogger, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("analysis base URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(10 * cfg.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// Analysis runs speech recognition on every POST, so only GETs are retried.
			if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{http: rc, log: log, metrics: m}, nil
}

// Analyze uploads the artifact as multipart form data: the audio bytes in
// field "audio" and the duration in seconds in field "duration".
func (c *Client) Analyze(ctx context.Context, a pipeline.Artifact) (*Report, error) {
	report := &Report{}
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("audio", fileName(a.MIMEType), bytes.NewReader(a.Bytes)).
		SetFormData(map[string]string{
			"duration": strconv.FormatFloat(a.DurationSeconds, 'f', -1, 64),
		}).
		SetResult(report).
		Post("/analyze")
	if err != nil {
		c.metrics.AnalysisRequest(0, time.Since(start))
		return nil, fmt.Errorf("submitting artifact %s: %w", a.ID, err)
	}
	c.metrics.AnalysisRequest(resp.StatusCode(), time.Since(start))
	if resp.IsError() || resp.StatusCode() >= 300 {
		return nil, &StatusError{Code: resp.StatusCode(), Body: string(resp.Body())}
	}

	c.log.Infow("analysis received",
		"artifact", a.ID,
		"words", report.Metrics.TotalWords,
		"wpm", report.Metrics.WPM,
		"latency", resp.Time(),
	)
	return report, nil
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("checking analysis service health: %w", err)
	}
	if resp.IsError() {
		return &StatusError{Code: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

func fileName(mimeType string) string {
	switch codec.BaseMIME(mimeType) {
	case codec.MIMEWAV, "audio/x-wav", "audio/wave":
		return "audio.wav"
	case codec.MIMEFLAC, "audio/x-flac":
		return "audio.flac"
	}
	return "audio.bin"
}
