package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filebrowser_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filebrowser_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Streaming metrics
var (
	StreamedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_streamed_bytes_total",
			Help: "Total bytes streamed to clients",
		},
		[]string{"mode"}, // "direct", "transcode"
	)

	RangeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_range_requests_total",
			Help: "Total number of Range header resolutions",
		},
		[]string{"result"}, // "full", "partial", "unsatisfiable"
	)
)

// Transcode session metrics
var (
	TranscodeSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filebrowser_transcode_sessions_active",
			Help: "Number of encoder processes currently running",
		},
	)

	TranscodeSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_transcode_sessions_total",
			Help: "Transcode sessions by pipeline and outcome",
		},
		[]string{"pipeline", "outcome"}, // pipeline: "copy", "transcode"; outcome: "completed", "killed", "failed"
	)
)

// Probe metrics
var (
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filebrowser_probe_duration_seconds",
			Help:    "Duration of external metadata probe invocations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ProbeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filebrowser_probe_failures_total",
			Help: "Total number of failed metadata probes",
		},
	)
)

// Watch history metrics
var (
	HistoryQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_history_queries_total",
			Help: "Watch history store operations",
		},
		[]string{"operation", "status"}, // status: "ok", "error"
	)
)
