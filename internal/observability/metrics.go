// File: internal/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submissions counts finished form submissions by outcome
	// (success, launch_error, navigation_error, capture_error, error).
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dlsmap",
			Name:      "submissions_total",
			Help:      "Total number of form submissions by outcome",
		},
		[]string{"outcome"},
	)

	// FieldResults counts per-field outcomes (set, skipped, missing, failed).
	FieldResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dlsmap",
			Name:      "field_results_total",
			Help:      "Total number of form field outcomes by field and status",
		},
		[]string{"field", "status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dlsmap",
			Subsystem: "browser",
			Name:      "sessions_active",
			Help:      "Number of browser sessions currently open",
		},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dlsmap",
			Name:      "submission_duration_seconds",
			Help:      "Wall time of a form submission from launch to release",
			Buckets:   []float64{1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
		},
	)
)
