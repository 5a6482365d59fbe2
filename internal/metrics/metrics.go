// Package metrics provides Prometheus metrics for the story service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoryOperations counts lifecycle operations by outcome.
	StoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stories",
			Name:      "operations_total",
			Help:      "Total number of story lifecycle operations",
		},
		[]string{"operation", "outcome"},
	)

	// ScrapeResults counts scrape attempts by mode (inline, worker) and status.
	ScrapeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stories",
			Name:      "scrape_total",
			Help:      "Total number of story scrape attempts",
		},
		[]string{"mode", "status"},
	)

	// ScrapeJobs counts scrape job enqueue decisions.
	ScrapeJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stories",
			Name:      "scrape_jobs_total",
			Help:      "Total number of scrape jobs by enqueue result",
		},
		[]string{"result"},
	)

	// CountCacheErrors counts failed best-effort writes to the count cache.
	CountCacheErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stories",
			Name:      "count_cache_errors_total",
			Help:      "Total number of failed count cache writes",
		},
	)

	// HTTPDuration measures API request duration.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stories",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)
