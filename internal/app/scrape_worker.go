package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/logger"
	"github.com/samvad-hq/samvad-story-service/internal/metrics"
	"github.com/samvad-hq/samvad-story-service/internal/queue"
)

// JobProcessor applies one scrape job.
type JobProcessor interface {
	ProcessScrapeJob(ctx context.Context, tenant *domain.Tenant, job domain.ScrapeJob) error
}

// TenantSource resolves the tenant of a job.
type TenantSource interface {
	Get(id string) (*domain.Tenant, error)
}

// ScrapeWorker drains the scrape queue.
type ScrapeWorker struct {
	consumer  queue.Consumer
	tenants   TenantSource
	processor JobProcessor
	log       logger.Logger
}

// NewScrapeWorker builds a worker reading from consumer.
func NewScrapeWorker(consumer queue.Consumer, tenants TenantSource, processor JobProcessor, log logger.Logger) *ScrapeWorker {
	return &ScrapeWorker{
		consumer:  consumer,
		tenants:   tenants,
		processor: processor,
		log:       logger.Ensure(log),
	}
}

// Run consumes jobs until ctx is cancelled.
func (w *ScrapeWorker) Run(ctx context.Context) error {
	w.log.InfoObj("scrape worker starting", "worker_state", "running")
	err := w.consumer.Consume(ctx, w.handle)
	w.log.InfoObj("scrape worker exiting", "reason", ctx.Err())
	return err
}

// handle processes one job. Jobs for unknown tenants are dropped since a
// retry cannot succeed.
func (w *ScrapeWorker) handle(ctx context.Context, job domain.ScrapeJob) error {
	start := time.Now()
	tenant, err := w.tenants.Get(job.TenantID)
	if err != nil {
		metrics.ScrapeResults.WithLabelValues("worker", "dropped").Inc()
		w.log.WarnObj("scrape job for unknown tenant dropped", "scrape_job", job)
		return nil
	}

	if err := w.processor.ProcessScrapeJob(ctx, tenant, job); err != nil {
		w.log.ErrorObj("scrape job failed", "scrape_job_error", map[string]any{
			"tenant_id": job.TenantID,
			"story_id":  job.StoryID,
			"url":       job.StoryURL,
			"error":     err.Error(),
		})
		return fmt.Errorf("process scrape job %s: %w", job.Key(), err)
	}

	w.log.DebugObj("scrape job completed", "scrape_job_meta", map[string]any{
		"tenant_id":  job.TenantID,
		"story_id":   job.StoryID,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
