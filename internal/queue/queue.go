// Package queue carries scrape jobs from the lifecycle service to the scrape
// worker. Delivery is at-least-once; handlers must be idempotent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

// ErrQueueFull is returned by bounded in-process queues.
var ErrQueueFull = errors.New("scrape queue is full")

// ScraperQueue accepts scrape jobs.
type ScraperQueue interface {
	Add(ctx context.Context, job domain.ScrapeJob) error
}

// Handler processes one job. A returned error leaves the job for redelivery
// where the backend supports it.
type Handler func(ctx context.Context, job domain.ScrapeJob) error

// Consumer delivers queued jobs to a handler until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handle Handler) error
}

// Backend is both ends of a queue.
type Backend interface {
	ScraperQueue
	Consumer
	Close() error
}

// Queue types accepted by config.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeNone   = "none"
)

// NormalizeType validates a configured queue type.
func NormalizeType(typ string) (string, error) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	switch typ {
	case "", TypeNone, "disabled":
		return TypeNone, nil
	case TypeMemory, TypeRedis:
		return typ, nil
	default:
		return "", fmt.Errorf("unsupported queue type %q", typ)
	}
}

// Nop drops every job.
type Nop struct{}

func (Nop) Add(context.Context, domain.ScrapeJob) error { return nil }

func (Nop) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return nil
}

func (Nop) Close() error { return nil }
