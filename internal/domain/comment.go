package domain

import "time"

// CommentStatus is the moderation status of a comment.
type CommentStatus string

const (
	StatusNone           CommentStatus = "NONE"
	StatusApproved       CommentStatus = "APPROVED"
	StatusRejected       CommentStatus = "REJECTED"
	StatusPremod         CommentStatus = "PREMOD"
	StatusSystemWithheld CommentStatus = "SYSTEM_WITHHELD"
)

// ActionTag identifies a kind of comment action, e.g. a flag or reaction.
type ActionTag string

const (
	ActionFlag      ActionTag = "FLAG"
	ActionReaction  ActionTag = "REACTION"
	ActionDontAgree ActionTag = "DONT_AGREE"
)

// Comment is the minimal comment record needed for story merge and removal.
type Comment struct {
	ID           string        `json:"id"`
	TenantID     string        `json:"tenant_id"`
	StoryID      string        `json:"story_id"`
	Status       CommentStatus `json:"status"`
	ActionCounts ActionCounts  `json:"action_counts,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// CommentAction is an action (flag, reaction, ...) left on a comment.
type CommentAction struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	StoryID    string    `json:"story_id"`
	CommentID  string    `json:"comment_id"`
	ActionType ActionTag `json:"action_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScrapeJob asks the scrape worker to fetch metadata for a story.
type ScrapeJob struct {
	StoryID  string `json:"story_id"`
	StoryURL string `json:"story_url"`
	TenantID string `json:"tenant_id"`
}

// Key returns the tenant scoped identity of the job.
func (j ScrapeJob) Key() string {
	return j.TenantID + "/" + j.StoryID
}
