package queue

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/logger"
	"github.com/samvad-hq/samvad-story-service/internal/metrics"
)

// Ledger remembers recently enqueued job keys for a TTL.
type Ledger interface {
	SeenJob(key string) (bool, error)
	MarkJob(key string) error
}

// DedupingQueue forwards a job only if the same story was not enqueued within
// the ledger TTL.
type DedupingQueue struct {
	inner  ScraperQueue
	ledger Ledger
	log    logger.Logger
}

// NewDedupingQueue wraps inner with ledger.
func NewDedupingQueue(inner ScraperQueue, ledger Ledger, log logger.Logger) *DedupingQueue {
	return &DedupingQueue{inner: inner, ledger: ledger, log: logger.Ensure(log)}
}

// Add enqueues job unless it is already pending. Ledger read failures fall
// through to enqueueing, since a duplicate scrape is harmless.
func (q *DedupingQueue) Add(ctx context.Context, job domain.ScrapeJob) error {
	key := job.Key()

	seen, err := q.ledger.SeenJob(key)
	if err != nil {
		q.log.WarnObj("scrape ledger lookup failed", "scrape_ledger_error", map[string]any{
			"job_key": key,
			"error":   err.Error(),
		})
	}
	if seen {
		metrics.ScrapeJobs.WithLabelValues("duplicate").Inc()
		q.log.DebugObj("scrape job already pending", "job_key", key)
		return nil
	}

	if err := q.inner.Add(ctx, job); err != nil {
		metrics.ScrapeJobs.WithLabelValues("failed").Inc()
		return fmt.Errorf("enqueue scrape job: %w", err)
	}
	metrics.ScrapeJobs.WithLabelValues("enqueued").Inc()

	if err := q.ledger.MarkJob(key); err != nil {
		q.log.WarnObj("scrape ledger mark failed", "scrape_ledger_error", map[string]any{
			"job_key": key,
			"error":   err.Error(),
		})
	}
	return nil
}
