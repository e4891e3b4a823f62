package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the interpreter client
type Metrics struct {
	// Segment pipeline metrics
	SegmentsAssembled prometheus.Counter
	SegmentsSubmitted prometheus.Counter
	SubmitFailures    prometheus.Counter
	SubmitRetries     prometheus.Counter
	PendingSegments   prometheus.Gauge

	// Latency metrics
	EncodeDuration   prometheus.Histogram
	SubmitDuration   prometheus.Histogram
	EndToEndDuration prometheus.Histogram

	// Event stream metrics
	EventsReceived *prometheus.CounterVec
	StreamErrors   prometheus.Counter

	// Encoded payload metrics
	SegmentSize prometheus.Histogram

	// Debug HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Segment pipeline metrics
		SegmentsAssembled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interpreter_segments_assembled_total",
			Help: "Total number of audio segments assembled",
		}),
		SegmentsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interpreter_segments_submitted_total",
			Help: "Total number of segments successfully submitted",
		}),
		SubmitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interpreter_submit_failures_total",
			Help: "Total number of segment submissions that exhausted retries",
		}),
		SubmitRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interpreter_submit_retries_total",
			Help: "Total number of segment submission retries",
		}),
		PendingSegments: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "interpreter_pending_segments",
			Help: "Current number of segments awaiting results",
		}),

		// Latency metrics
		EncodeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interpreter_encode_duration_seconds",
			Help:    "Time spent encoding audio segments",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interpreter_submit_duration_seconds",
			Help:    "Duration of segment submission requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		EndToEndDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interpreter_end_to_end_duration_seconds",
			Help:    "Latency from segment submission to result arrival",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Event stream metrics
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "interpreter_stream_events_total",
			Help: "Total number of event stream events by type",
		}, []string{"type"}),
		StreamErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interpreter_stream_errors_total",
			Help: "Total number of server-reported stream errors",
		}),

		// Encoded payload metrics
		SegmentSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interpreter_segment_size_bytes",
			Help:    "Size of encoded audio segments in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Debug HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "interpreter_http_requests_total",
			Help: "Total number of debug HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "interpreter_http_request_duration_seconds",
			Help:    "Duration of debug HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordSegmentAssembled increments the assembled segments counter
func (m *Metrics) RecordSegmentAssembled() {
	m.SegmentsAssembled.Inc()
}

// RecordSegmentSubmitted records a successful submission
func (m *Metrics) RecordSegmentSubmitted(durationSeconds float64, sizeBytes int) {
	m.SegmentsSubmitted.Inc()
	m.SubmitDuration.Observe(durationSeconds)
	m.SegmentSize.Observe(float64(sizeBytes))
}

// RecordSubmitFailure increments the submit failures counter
func (m *Metrics) RecordSubmitFailure() {
	m.SubmitFailures.Inc()
}

// RecordSubmitRetry increments the submit retries counter
func (m *Metrics) RecordSubmitRetry() {
	m.SubmitRetries.Inc()
}

// SetPendingSegments sets the current pending segment count
func (m *Metrics) SetPendingSegments(count int) {
	m.PendingSegments.Set(float64(count))
}

// RecordEncode records the encode latency for one segment
func (m *Metrics) RecordEncode(durationSeconds float64) {
	m.EncodeDuration.Observe(durationSeconds)
}

// RecordEndToEnd records the assembly-to-result latency for one segment
func (m *Metrics) RecordEndToEnd(durationSeconds float64) {
	m.EndToEndDuration.Observe(durationSeconds)
}

// RecordEvent records a received stream event
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

// RecordStreamError increments the stream errors counter
func (m *Metrics) RecordStreamError() {
	m.StreamErrors.Inc()
}

// RecordHTTPRequest records a debug HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
