package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/logger"
)

// RedisConfig holds Redis stream queue settings.
type RedisConfig struct {
	// Stream is the stream key jobs are appended to.
	Stream string
	// Group is the consumer group shared by scrape workers.
	Group string
	// Consumer is this worker's name within the group. Empty picks a random name.
	Consumer string
	// BatchSize is the number of messages read at once.
	BatchSize int64
	// Block is how long a read waits for new messages.
	Block time.Duration
	// RetryIdle is how long a delivered but unacknowledged job waits before
	// it is claimed again, by this or another consumer.
	RetryIdle time.Duration
	// MaxDeliveries caps how often one job is handed to a handler.
	MaxDeliveries int64
	// DeadLetterStream receives jobs that exceeded MaxDeliveries. Empty
	// means they are only logged and acknowledged.
	DeadLetterStream string
}

// RedisQueue stores jobs in a Redis stream read through a consumer group.
// Messages are acknowledged only after the handler succeeds.
type RedisQueue struct {
	client redis.UniversalClient
	cfg    RedisConfig
	log    logger.Logger
}

// NewRedisQueue builds a stream queue on client.
func NewRedisQueue(client redis.UniversalClient, cfg RedisConfig, log logger.Logger) *RedisQueue {
	if cfg.Consumer == "" {
		cfg.Consumer = "scraper-" + uuid.NewString()[:8]
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.RetryIdle <= 0 {
		cfg.RetryIdle = 30 * time.Second
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	return &RedisQueue{client: client, cfg: cfg, log: logger.Ensure(log)}
}

// Add appends job to the stream.
func (q *RedisQueue) Add(ctx context.Context, job domain.ScrapeJob) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]interface{}{
			"tenant_id":   job.TenantID,
			"story_id":    job.StoryID,
			"story_url":   job.StoryURL,
			"enqueued_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", q.cfg.Stream, err)
	}
	return nil
}

// Consume reads jobs until ctx is cancelled.
func (q *RedisQueue) Consume(ctx context.Context, handle Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	q.log.InfoObj("scrape consumer starting", "scrape_consumer", map[string]any{
		"stream":   q.cfg.Stream,
		"group":    q.cfg.Group,
		"consumer": q.cfg.Consumer,
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := q.readAndProcess(ctx, handle); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.log.ErrorObj("scrape consumer read failed", "error", err.Error())
			timer := time.NewTimer(time.Second)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// ensureGroup creates the consumer group, ignoring BUSYGROUP.
func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// readAndProcess retries stale pending jobs, then reads new ones.
func (q *RedisQueue) readAndProcess(ctx context.Context, handle Handler) error {
	if err := q.reclaim(ctx, handle); err != nil {
		return err
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    q.cfg.BatchSize,
		Block:    q.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			q.process(ctx, handle, message)
		}
	}
	return nil
}

// reclaim claims jobs left unacknowledged for at least RetryIdle, including
// those of consumers that died, and hands them to handle again. Jobs past
// MaxDeliveries are dead-lettered instead.
func (q *RedisQueue) reclaim(ctx context.Context, handle Handler) error {
	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.RetryIdle,
		Start:    "0-0",
		Count:    q.cfg.BatchSize,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("xautoclaim %s: %w", q.cfg.Stream, err)
	}

	for _, message := range messages {
		deliveries, err := q.deliveries(ctx, message.ID)
		if err != nil {
			return err
		}
		if deliveries > q.cfg.MaxDeliveries {
			q.deadLetter(ctx, message, deliveries)
			continue
		}
		q.process(ctx, handle, message)
	}
	return nil
}

// deliveries returns how often the message has been delivered so far.
func (q *RedisQueue) deliveries(ctx context.Context, id string) (int64, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.cfg.Stream,
		Group:  q.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending %s: %w", id, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return pending[0].RetryCount, nil
}

func (q *RedisQueue) deadLetter(ctx context.Context, message redis.XMessage, deliveries int64) {
	job := parseJob(message)
	q.log.ErrorObj("scrape job exceeded max deliveries", "scrape_dead_letter", map[string]any{
		"message_id": message.ID,
		"tenant_id":  job.TenantID,
		"story_id":   job.StoryID,
		"deliveries": deliveries,
	})

	if q.cfg.DeadLetterStream != "" {
		values := make(map[string]interface{}, len(message.Values)+2)
		for k, v := range message.Values {
			values[k] = v
		}
		values["source_id"] = message.ID
		values["deliveries"] = deliveries
		err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.cfg.DeadLetterStream, Values: values}).Err()
		if err != nil {
			// Leave it pending so the next reclaim retries the move.
			q.log.ErrorObj("scrape dead letter failed", "error", err.Error())
			return
		}
	}
	q.ack(ctx, message.ID)
}

// process runs handle on one message and acknowledges it on success.
func (q *RedisQueue) process(ctx context.Context, handle Handler, message redis.XMessage) {
	job := parseJob(message)
	if err := handle(ctx, job); err != nil {
		q.log.WarnObj("scrape job failed", "scrape_job_error", map[string]any{
			"message_id": message.ID,
			"tenant_id":  job.TenantID,
			"story_id":   job.StoryID,
			"error":      err.Error(),
		})
		return
	}
	q.ack(ctx, message.ID)
}

func (q *RedisQueue) ack(ctx context.Context, id string) {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, id).Err(); err != nil {
		q.log.ErrorObj("scrape job ack failed", "scrape_ack_error", map[string]any{
			"message_id": id,
			"error":      err.Error(),
		})
	}
}

func parseJob(message redis.XMessage) domain.ScrapeJob {
	var job domain.ScrapeJob
	if v, ok := message.Values["tenant_id"].(string); ok {
		job.TenantID = v
	}
	if v, ok := message.Values["story_id"].(string); ok {
		job.StoryID = v
	}
	if v, ok := message.Values["story_url"].(string); ok {
		job.StoryURL = v
	}
	return job
}

// Close is a no-op; the client is owned by the caller and shared with the
// count cache.
func (q *RedisQueue) Close() error { return nil }
