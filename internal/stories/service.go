// Package stories implements the story lifecycle: lookup, lazy creation,
// settings, open/close, removal and merging, together with the scrape
// decisions that follow those writes.
package stories

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-story-service/internal/config"
	"github.com/samvad-hq/samvad-story-service/internal/counters"
	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/logger"
	"github.com/samvad-hq/samvad-story-service/internal/metrics"
	"github.com/samvad-hq/samvad-story-service/internal/queue"
	"github.com/samvad-hq/samvad-story-service/internal/storage"
	"github.com/samvad-hq/samvad-story-service/pkg/publishers"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	storage.StoryStore
	MergeManyCommentStories(tenantID, destinationID string, sourceIDs []string) (int, error)
	RemoveStoryComments(tenantID, storyID string) (int, error)
	MergeManyStoryActions(tenantID, destinationID string, sourceIDs []string) (int, error)
	RemoveStoryActions(tenantID, storyID string) (int, error)
	CreateComment(c domain.Comment) error
	RetrieveComment(tenantID, id string) (*domain.Comment, error)
	CreateCommentAction(a domain.CommentAction) error
}

// Scraper fetches story metadata and writes it back to the repository.
type Scraper interface {
	Scrape(ctx context.Context, tenantID, storyID, storyURL string) (*domain.Story, error)
}

// EventPublisher sends story events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Options wires the collaborators of a Service. Only Repo is required.
type Options struct {
	Repo    Repository
	Scraper Scraper
	Queue   queue.ScraperQueue
	Counts  counters.Cache
	Events  EventPublisher
	Log     logger.Logger
	// MergeCountsMode is config.MergeCountsReplace or config.MergeCountsAccumulate.
	MergeCountsMode string
	Now             func() time.Time
}

// Service orchestrates story operations for a single tenant per call.
type Service struct {
	repo      Repository
	scraper   Scraper
	queue     queue.ScraperQueue
	counts    counters.Cache
	events    EventPublisher
	log       logger.Logger
	mergeMode string
	now       func() time.Time
}

// NewService builds a Service, defaulting optional collaborators to no-ops.
func NewService(opts Options) *Service {
	s := &Service{
		repo:      opts.Repo,
		scraper:   opts.Scraper,
		queue:     opts.Queue,
		counts:    opts.Counts,
		events:    opts.Events,
		log:       logger.Ensure(opts.Log),
		mergeMode: opts.MergeCountsMode,
		now:       opts.Now,
	}
	if s.queue == nil {
		s.queue = queue.Nop{}
	}
	if s.counts == nil {
		s.counts = counters.Nop{}
	}
	if s.mergeMode == "" {
		s.mergeMode = config.MergeCountsReplace
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// observe records the outcome of an operation.
func observe(op string, story *domain.Story, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case story == nil:
		outcome = metrics.OutcomeNotFound
	}
	metrics.StoryOperations.WithLabelValues(op, outcome).Inc()
}

// emit publishes an event without failing the caller.
func (s *Service) emit(ctx context.Context, evt publishers.Event) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, evt); err != nil {
		s.log.WarnObj("story event publish failed", "story_event_error", map[string]any{
			"event_type": evt.Type,
			"tenant_id":  evt.TenantID,
			"story_id":   evt.StoryID,
			"error":      err.Error(),
		})
	}
}

// syncCounts mirrors story counts into the cache. The store stays
// authoritative, so failures are only logged.
func (s *Service) syncCounts(ctx context.Context, story *domain.Story) {
	if story == nil {
		return
	}
	if err := s.counts.SetStoryCounts(ctx, story.TenantID, story.ID, story.CommentCounts); err != nil {
		metrics.CountCacheErrors.Inc()
		s.log.WarnObj("count cache update failed", "count_cache_error", map[string]any{
			"tenant_id": story.TenantID,
			"story_id":  story.ID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) dropCounts(ctx context.Context, tenantID, storyID string) {
	if err := s.counts.DeleteStory(ctx, tenantID, storyID); err != nil {
		metrics.CountCacheErrors.Inc()
		s.log.WarnObj("count cache delete failed", "count_cache_error", map[string]any{
			"tenant_id": tenantID,
			"story_id":  storyID,
			"error":     err.Error(),
		})
	}
}

func requireTenant(tenant *domain.Tenant) error {
	if tenant == nil || tenant.ID == "" {
		return domain.ErrTenantNotFound
	}
	return nil
}
