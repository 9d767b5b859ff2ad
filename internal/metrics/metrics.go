// Package metrics exposes Prometheus instruments for capture sessions,
// artifacts and analysis requests. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gotalk_coach"

type Metrics struct {
	sessionsStarted    *prometheus.CounterVec
	sessionsStopped    *prometheus.CounterVec
	deviceUnavailable  prometheus.Counter
	captureSeconds     prometheus.Histogram
	artifacts          *prometheus.CounterVec
	decodeFailures     prometheus.Counter
	metadataUnreadable prometheus.Counter
	analysisRequests   *prometheus.CounterVec
	analysisLatency    prometheus.Histogram
}

// New registers all instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_started_total",
			Help:      "Capture sessions started, by negotiated chunk format.",
		}, []string{"format"}),
		sessionsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_stopped_total",
			Help:      "Capture sessions stopped, by stop reason.",
		}, []string{"reason"}),
		deviceUnavailable: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_unavailable_total",
			Help:      "Capture attempts that could not open a device.",
		}),
		captureSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Wall-clock length of finished capture sessions.",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 75, 90},
		}),
		artifacts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Audio artifacts produced, by source and whether the raw fallback was used.",
		}, []string{"source", "degraded"}),
		decodeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Captured streams that could not be decoded and were forwarded raw.",
		}),
		metadataUnreadable: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_unreadable_total",
			Help:      "Uploaded files whose duration could not be read.",
		}),
		analysisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Requests to the analysis service, by HTTP status code (0 for transport errors).",
		}, []string{"code"}),
		analysisLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_request_duration_seconds",
			Help:      "Latency of analysis requests.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
	}
}

func (m *Metrics) SessionStarted(format string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(format).Inc()
}

func (m *Metrics) SessionStopped(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.sessionsStopped.WithLabelValues(reason).Inc()
	m.captureSeconds.Observe(d.Seconds())
}

func (m *Metrics) DeviceUnavailable() {
	if m == nil {
		return
	}
	m.deviceUnavailable.Inc()
}

func (m *Metrics) ArtifactProduced(source string, degraded bool) {
	if m == nil {
		return
	}
	m.artifacts.WithLabelValues(source, strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) DecodeFailed() {
	if m == nil {
		return
	}
	m.decodeFailures.Inc()
}

func (m *Metrics) MetadataUnreadable() {
	if m == nil {
		return
	}
	m.metadataUnreadable.Inc()
}

// AnalysisRequest records one round trip; code is 0 when no response arrived.
func (m *Metrics) AnalysisRequest(code int, d time.Duration) {
	if m == nil {
		return
	}
	m.analysisRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	m.analysisLatency.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
