package publishers

import (
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

// Story event types.
const (
	EventStoryCreated = "story.created"
	EventStoryUpdated = "story.updated"
	EventStoryOpened  = "story.opened"
	EventStoryClosed  = "story.closed"
	EventStoryRemoved = "story.removed"
	EventStoryMerged  = "story.merged"
	EventStoryScraped = "story.scraped"
)

// Event represents the payload published downstream.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	StoryID    string         `json:"story_id"`
	StoryURL   string         `json:"story_url,omitempty"`
	Story      *domain.Story  `json:"story,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent constructs an Event of typ for story.
func NewEvent(typ string, story *domain.Story) Event {
	evt := Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Story:      story,
		OccurredAt: time.Now().UTC(),
	}
	if story != nil {
		evt.TenantID = story.TenantID
		evt.StoryID = story.ID
		evt.StoryURL = story.URL
	}
	return evt
}

// WithData attaches an extra field to the event.
func (e Event) WithData(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// attributes are the routing attributes set on queue/topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type": e.Type,
		"tenant_id":  e.TenantID,
		"story_id":   e.StoryID,
	}
}
