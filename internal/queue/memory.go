package queue

import (
	"context"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/logger"
)

// MemoryQueue is a bounded in-process queue for single-node deployments and
// tests. Jobs are lost on restart.
type MemoryQueue struct {
	jobs chan domain.ScrapeJob
	log  logger.Logger
}

// NewMemoryQueue creates a queue holding up to size pending jobs.
func NewMemoryQueue(size int, log logger.Logger) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{jobs: make(chan domain.ScrapeJob, size), log: logger.Ensure(log)}
}

// Add enqueues without blocking; a full queue rejects the job.
func (q *MemoryQueue) Add(_ context.Context, job domain.ScrapeJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of pending jobs.
func (q *MemoryQueue) Len() int { return len(q.jobs) }

// Consume runs handle for each job until ctx is done. Failed jobs are logged
// and dropped.
func (q *MemoryQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-q.jobs:
			if err := handle(ctx, job); err != nil {
				q.log.WarnObj("scrape job failed", "scrape_job_error", map[string]any{
					"tenant_id": job.TenantID,
					"story_id":  job.StoryID,
					"error":     err.Error(),
				})
			}
		}
	}
}

// Close is a no-op.
func (q *MemoryQueue) Close() error { return nil }
