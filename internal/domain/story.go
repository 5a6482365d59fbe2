package domain

import "time"

// Story is the commentable entity, identified by (TenantID, ID).
type Story struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	URL           string         `json:"url"`
	Metadata      *StoryMetadata `json:"metadata,omitempty"`
	ScrapedAt     *time.Time     `json:"scraped_at,omitempty"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"`
	ReopenedAt    *time.Time     `json:"reopened_at,omitempty"`
	Settings      StorySettings  `json:"settings"`
	CommentCounts CommentCounts  `json:"comment_counts"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// StoryMetadata holds the fields extracted from the story page.
type StoryMetadata struct {
	Title       string     `json:"title,omitempty"`
	Author      string     `json:"author,omitempty"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"image,omitempty"`
	Section     string     `json:"section,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
}

// ModerationMode controls whether comments are visible before review.
type ModerationMode string

const (
	ModerationPre  ModerationMode = "PRE"
	ModerationPost ModerationMode = "POST"
)

// StorySettings are per-story overrides of tenant behaviour.
type StorySettings struct {
	Moderation        ModerationMode `json:"moderation,omitempty"`
	PremodLinksEnable bool           `json:"premod_links_enable"`
	MessageBox        MessageBox     `json:"message_box"`
	LiveEnabled       bool           `json:"live_enabled"`
}

// MessageBox is the banner shown above the comment stream.
type MessageBox struct {
	Enabled bool   `json:"enabled"`
	Icon    string `json:"icon,omitempty"`
	Content string `json:"content,omitempty"`
}

// CommentCounts groups the aggregate counters stored on a story.
type CommentCounts struct {
	Status StatusCounts `json:"status"`
	Action ActionCounts `json:"action"`
}

// NeedsScrape reports whether the story still lacks scraped metadata.
func (s *Story) NeedsScrape() bool {
	return s != nil && s.Metadata == nil && s.ScrapedAt == nil
}

// IsClosed reports whether commenting on the story is closed at now, taking
// the tenant auto-close policy into account. An explicit reopen suppresses
// auto-close.
func IsClosed(story *Story, tenant *Tenant, now time.Time) bool {
	if story == nil {
		return false
	}
	if story.ClosedAt != nil {
		return !story.ClosedAt.After(now)
	}
	if story.ReopenedAt != nil || tenant == nil {
		return false
	}
	cc := tenant.CloseCommenting
	if !cc.Auto || cc.Timeout <= 0 {
		return false
	}
	return !story.CreatedAt.Add(cc.Timeout).After(now)
}
