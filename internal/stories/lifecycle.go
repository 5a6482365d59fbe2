package stories

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/metrics"
	"github.com/samvad-hq/samvad-story-service/internal/storage"
	tenants "github.com/samvad-hq/samvad-story-service/internal/tenant"
	"github.com/samvad-hq/samvad-story-service/pkg/publishers"
)

// CreateInput holds the caller supplied fields of a new story.
type CreateInput struct {
	Metadata *domain.StoryMetadata
	ClosedAt *time.Time
}

// checkURL rejects urls outside the tenant allow-list.
func checkURL(tenant *domain.Tenant, url string) error {
	if !tenants.IsURLPermitted(tenant, url) {
		return domain.NewStoryURLInvalidError(tenant, url)
	}
	return nil
}

// Find looks a story up by id or url. A url must be on the allow-list.
func (s *Service) Find(ctx context.Context, tenant *domain.Tenant, in storage.FindStoryInput) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if in.URL != "" {
		if err := checkURL(tenant, in.URL); err != nil {
			return nil, err
		}
	}

	story, err := s.repo.FindStory(tenant.ID, in)
	observe("find", story, err)
	if err != nil {
		return nil, fmt.Errorf("find story: %w", err)
	}
	return story, nil
}

// FindOrCreate returns the story for in, creating it when missing. New
// stories that still need metadata get a scrape job; enqueue failures are
// logged and never fail the call.
func (s *Service) FindOrCreate(ctx context.Context, tenant *domain.Tenant, in storage.FindOrCreateStoryInput) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if in.URL != "" {
		if err := checkURL(tenant, in.URL); err != nil {
			return nil, err
		}
	}

	story, err := s.repo.FindOrCreateStory(tenant.ID, in, s.clock())
	observe("find_or_create", story, err)
	if err != nil {
		return nil, fmt.Errorf("find or create story: %w", err)
	}
	if story == nil {
		return nil, nil
	}

	if tenant.ScrapingEnabled() && story.NeedsScrape() {
		job := domain.ScrapeJob{StoryID: story.ID, StoryURL: story.URL, TenantID: tenant.ID}
		if err := s.queue.Add(ctx, job); err != nil {
			s.log.WarnObj("scrape job enqueue failed", "scrape_enqueue_error", map[string]any{
				"tenant_id": tenant.ID,
				"story_id":  story.ID,
				"error":     err.Error(),
			})
		}
	}
	return story, nil
}

// Create inserts a story. Supplied metadata marks it as scraped; otherwise,
// with scraping enabled, the page is scraped inline. A failed scrape is
// logged and the unscraped story is returned.
func (s *Service) Create(ctx context.Context, tenant *domain.Tenant, storyID, storyURL string, in CreateInput) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := checkURL(tenant, storyURL); err != nil {
		return nil, err
	}

	now := s.clock()
	input := storage.CreateStoryInput{Metadata: in.Metadata, ClosedAt: in.ClosedAt}
	if in.Metadata != nil {
		input.ScrapedAt = &now
	}

	story, err := s.repo.CreateStory(tenant.ID, storyID, storyURL, input, now)
	observe("create", story, err)
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}

	if in.Metadata == nil && tenant.ScrapingEnabled() && s.scraper != nil {
		story = s.scrapeInline(ctx, story)
	}

	s.emit(ctx, publishers.NewEvent(publishers.EventStoryCreated, story))
	return story, nil
}

func (s *Service) scrapeInline(ctx context.Context, story *domain.Story) *domain.Story {
	scraped, err := s.scraper.Scrape(ctx, story.TenantID, story.ID, story.URL)
	if err != nil {
		metrics.ScrapeResults.WithLabelValues("inline", "failed").Inc()
		s.log.WarnObj("inline story scrape failed", "story_scrape_error", map[string]any{
			"tenant_id": story.TenantID,
			"story_id":  story.ID,
			"url":       story.URL,
			"error":     err.Error(),
		})
		return story
	}
	metrics.ScrapeResults.WithLabelValues("inline", "ok").Inc()
	if scraped == nil {
		return story
	}
	return scraped
}

// Update changes the url and/or metadata of a story.
func (s *Service) Update(ctx context.Context, tenant *domain.Tenant, storyID string, in storage.UpdateStoryInput) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if in.URL != "" {
		if err := checkURL(tenant, in.URL); err != nil {
			return nil, err
		}
	}

	story, err := s.repo.UpdateStory(tenant.ID, storyID, in, s.clock())
	observe("update", story, err)
	if err != nil {
		return nil, fmt.Errorf("update story: %w", err)
	}
	if story != nil {
		s.emit(ctx, publishers.NewEvent(publishers.EventStoryUpdated, story))
	}
	return story, nil
}

// UpdateSettings patches the per-story settings.
func (s *Service) UpdateSettings(ctx context.Context, tenant *domain.Tenant, storyID string, in storage.UpdateStorySettingsInput) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}

	story, err := s.repo.UpdateStorySettings(tenant.ID, storyID, in, s.clock())
	observe("update_settings", story, err)
	if err != nil {
		return nil, fmt.Errorf("update story settings: %w", err)
	}
	if story != nil {
		s.emit(ctx, publishers.NewEvent(publishers.EventStoryUpdated, story))
	}
	return story, nil
}

// Open reopens commenting on a story.
func (s *Service) Open(ctx context.Context, tenant *domain.Tenant, storyID string) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}

	story, err := s.repo.OpenStory(tenant.ID, storyID, s.clock())
	observe("open", story, err)
	if err != nil {
		return nil, fmt.Errorf("open story: %w", err)
	}
	if story != nil {
		s.emit(ctx, publishers.NewEvent(publishers.EventStoryOpened, story))
	}
	return story, nil
}

// Close closes commenting on a story.
func (s *Service) Close(ctx context.Context, tenant *domain.Tenant, storyID string) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}

	story, err := s.repo.CloseStory(tenant.ID, storyID, s.clock())
	observe("close", story, err)
	if err != nil {
		return nil, fmt.Errorf("close story: %w", err)
	}
	if story != nil {
		s.emit(ctx, publishers.NewEvent(publishers.EventStoryClosed, story))
	}
	return story, nil
}

// ProcessScrapeJob runs a queued scrape. Jobs for stories that are gone or
// already scraped are dropped, so redelivery is harmless. A returned error
// leaves the job for redelivery.
func (s *Service) ProcessScrapeJob(ctx context.Context, tenant *domain.Tenant, job domain.ScrapeJob) error {
	if err := requireTenant(tenant); err != nil {
		return err
	}
	if s.scraper == nil || !tenant.ScrapingEnabled() {
		metrics.ScrapeResults.WithLabelValues("worker", "skipped").Inc()
		return nil
	}

	story, err := s.repo.RetrieveStory(tenant.ID, job.StoryID)
	if err != nil {
		return fmt.Errorf("retrieve story: %w", err)
	}
	if story == nil || !story.NeedsScrape() {
		metrics.ScrapeResults.WithLabelValues("worker", "skipped").Inc()
		return nil
	}

	scraped, err := s.scraper.Scrape(ctx, tenant.ID, story.ID, story.URL)
	if err != nil {
		metrics.ScrapeResults.WithLabelValues("worker", "failed").Inc()
		return fmt.Errorf("scrape story %s: %w", story.ID, err)
	}
	metrics.ScrapeResults.WithLabelValues("worker", "ok").Inc()
	if scraped != nil {
		s.emit(ctx, publishers.NewEvent(publishers.EventStoryScraped, scraped))
	}
	return nil
}
