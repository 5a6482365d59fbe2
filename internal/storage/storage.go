// Package storage persists stories, their comments and actions, and the
// scrape job ledger. Every key is scoped by tenant.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

// ErrStoryNotFound is returned by writes that require an existing story.
var ErrStoryNotFound = errors.New("story not found")

// FindStoryInput looks a story up by id, or by url when id is empty.
type FindStoryInput struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}

// FindOrCreateStoryInput identifies the story to find, or create when absent.
type FindOrCreateStoryInput struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}

// CreateStoryInput holds the optional fields of a new story.
type CreateStoryInput struct {
	Metadata  *domain.StoryMetadata `json:"metadata,omitempty"`
	ScrapedAt *time.Time            `json:"scraped_at,omitempty"`
	ClosedAt  *time.Time            `json:"closed_at,omitempty"`
}

// UpdateStoryInput changes the url and/or metadata. Zero values are left as is.
type UpdateStoryInput struct {
	URL      string                `json:"url,omitempty"`
	Metadata *domain.StoryMetadata `json:"metadata,omitempty"`
}

// UpdateStorySettingsInput patches story settings. Nil fields are unchanged.
type UpdateStorySettingsInput struct {
	Moderation        *domain.ModerationMode `json:"moderation,omitempty"`
	PremodLinksEnable *bool                  `json:"premod_links_enable,omitempty"`
	MessageBox        *domain.MessageBox     `json:"message_box,omitempty"`
	LiveEnabled       *bool                  `json:"live_enabled,omitempty"`
}

// StoryStore holds story documents.
type StoryStore interface {
	FindStory(tenantID string, in FindStoryInput) (*domain.Story, error)
	FindOrCreateStory(tenantID string, in FindOrCreateStoryInput, now time.Time) (*domain.Story, error)
	CreateStory(tenantID, id, url string, in CreateStoryInput, now time.Time) (*domain.Story, error)
	UpdateStory(tenantID, id string, in UpdateStoryInput, now time.Time) (*domain.Story, error)
	UpdateStorySettings(tenantID, id string, in UpdateStorySettingsInput, now time.Time) (*domain.Story, error)
	UpdateStoryMetadata(tenantID, id string, md *domain.StoryMetadata, now time.Time) (*domain.Story, error)
	OpenStory(tenantID, id string, now time.Time) (*domain.Story, error)
	CloseStory(tenantID, id string, now time.Time) (*domain.Story, error)
	RetrieveStory(tenantID, id string) (*domain.Story, error)
	RetrieveManyStories(tenantID string, ids []string) ([]*domain.Story, error)
	RemoveStory(tenantID, id string) (*domain.Story, error)
	RemoveStories(tenantID string, ids []string) (int, error)
	SetStoryCommentStatusCount(tenantID, id string, counts domain.StatusCounts, now time.Time) (*domain.Story, error)
	IncrementStoryCommentStatusCount(tenantID, id string, delta domain.StatusCounts, now time.Time) (*domain.Story, error)
	SetStoryActionCounts(tenantID, id string, counts domain.ActionCounts, now time.Time) (*domain.Story, error)
	IncrementStoryActionCounts(tenantID, id string, delta domain.ActionCounts, now time.Time) (*domain.Story, error)
}

// CommentStore holds the comment records needed for story merge and removal.
type CommentStore interface {
	CreateComment(c domain.Comment) error
	RetrieveComment(tenantID, id string) (*domain.Comment, error)
	MergeManyCommentStories(tenantID, destinationID string, sourceIDs []string) (int, error)
	RemoveStoryComments(tenantID, storyID string) (int, error)
}

// ActionStore holds comment actions.
type ActionStore interface {
	CreateCommentAction(a domain.CommentAction) error
	MergeManyStoryActions(tenantID, destinationID string, sourceIDs []string) (int, error)
	RemoveStoryActions(tenantID, storyID string) (int, error)
	CountStoryActions(tenantID, storyID string) (int, error)
}

// JobLedger tracks recently enqueued scrape jobs.
type JobLedger interface {
	SeenJob(key string) (bool, error)
	MarkJob(key string) error
}

// Store is the complete persistence surface.
type Store interface {
	StoryStore
	CommentStore
	ActionStore
	JobLedger
	Close() error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	JobTTL          time.Duration
	CleanupInterval time.Duration
}

const (
	defaultJobTTL          = time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.JobTTL <= 0 {
		opts.JobTTL = defaultJobTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}
