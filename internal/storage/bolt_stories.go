package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/samvad-story-service/internal/domain"
	bolt "go.etcd.io/bbolt"
)

func newStory(tenantID, id, url string, in CreateStoryInput, now time.Time) *domain.Story {
	return &domain.Story{
		ID:        id,
		TenantID:  tenantID,
		URL:       url,
		Metadata:  in.Metadata,
		ScrapedAt: in.ScrapedAt,
		ClosedAt:  in.ClosedAt,
		CommentCounts: domain.CommentCounts{
			Status: domain.StatusCounts{},
			Action: domain.ActionCounts{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// storyBuckets bundles the story and url index buckets of one tenant.
type storyBuckets struct {
	stories *bolt.Bucket
	urls    *bolt.Bucket
}

func openStoryBuckets(tx *bolt.Tx, tenantID string) (storyBuckets, error) {
	stories, err := tenantBucket(tx, storyBucket, tenantID)
	if err != nil {
		return storyBuckets{}, err
	}
	urls, err := tenantBucket(tx, storyURLBucket, tenantID)
	if err != nil {
		return storyBuckets{}, err
	}
	return storyBuckets{stories: stories, urls: urls}, nil
}

func (sb storyBuckets) byID(id string) (*domain.Story, error) {
	if id == "" {
		return nil, nil
	}
	return getJSON[domain.Story](sb.stories, id)
}

func (sb storyBuckets) byURL(url string) (*domain.Story, error) {
	if url == "" || sb.urls == nil {
		return nil, nil
	}
	id := sb.urls.Get([]byte(url))
	if id == nil {
		return nil, nil
	}
	return sb.byID(string(id))
}

func (sb storyBuckets) insert(story *domain.Story) error {
	if err := putJSON(sb.stories, story.ID, story); err != nil {
		return err
	}
	return sb.urls.Put([]byte(story.URL), []byte(story.ID))
}

func (sb storyBuckets) delete(story *domain.Story) error {
	if err := sb.stories.Delete([]byte(story.ID)); err != nil {
		return err
	}
	if id := sb.urls.Get([]byte(story.URL)); id != nil && string(id) == story.ID {
		return sb.urls.Delete([]byte(story.URL))
	}
	return nil
}

// FindStory looks a story up by id, falling back to url.
func (b *boltStore) FindStory(tenantID string, in FindStoryInput) (*domain.Story, error) {
	var story *domain.Story
	err := b.db.View(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, tenantID)
		if err != nil {
			return err
		}
		if in.ID != "" {
			story, err = sb.byID(in.ID)
			return err
		}
		story, err = sb.byURL(strings.TrimSpace(in.URL))
		return err
	})
	return story, err
}

// FindOrCreateStory returns the story matching in, creating it when missing.
// The lookup and insert share one write transaction. It returns nil when no
// story exists and there is no url to create one from.
func (b *boltStore) FindOrCreateStory(tenantID string, in FindOrCreateStoryInput, now time.Time) (*domain.Story, error) {
	url := strings.TrimSpace(in.URL)

	var story *domain.Story
	err := b.db.Update(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, tenantID)
		if err != nil {
			return err
		}

		if in.ID != "" {
			if story, err = sb.byID(in.ID); err != nil || story != nil {
				return err
			}
			if url == "" {
				return nil
			}
			if existing, err := sb.byURL(url); err != nil {
				return err
			} else if existing != nil {
				story = nil
				return fmt.Errorf("%w: %q", domain.ErrDuplicateStoryURL, url)
			}
			story = newStory(tenantID, in.ID, url, CreateStoryInput{}, now)
			return sb.insert(story)
		}

		if url == "" {
			return nil
		}
		if story, err = sb.byURL(url); err != nil || story != nil {
			return err
		}
		story = newStory(tenantID, uuid.NewString(), url, CreateStoryInput{}, now)
		return sb.insert(story)
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}

// CreateStory inserts a new story, failing if the id or url is taken.
func (b *boltStore) CreateStory(tenantID, id, url string, in CreateStoryInput, now time.Time) (*domain.Story, error) {
	url = strings.TrimSpace(url)
	if id == "" {
		id = uuid.NewString()
	}

	story := newStory(tenantID, id, url, in, now)
	err := b.db.Update(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, tenantID)
		if err != nil {
			return err
		}
		if existing, err := sb.byID(id); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateStoryID, id)
		}
		if existing, err := sb.byURL(url); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateStoryURL, url)
		}
		return sb.insert(story)
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}

// mutateStory loads a story, applies fn and writes it back with UpdatedAt set
// to now. A missing story yields nil without calling fn.
func (b *boltStore) mutateStory(tenantID, id string, now time.Time, fn func(sb storyBuckets, s *domain.Story) error) (*domain.Story, error) {
	var story *domain.Story
	err := b.db.Update(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, tenantID)
		if err != nil {
			return err
		}
		current, err := sb.byID(id)
		if err != nil || current == nil {
			return err
		}
		if err := fn(sb, current); err != nil {
			return err
		}
		current.UpdatedAt = now
		if err := putJSON(sb.stories, current.ID, current); err != nil {
			return err
		}
		story = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}

// UpdateStory changes the url and/or metadata of a story.
func (b *boltStore) UpdateStory(tenantID, id string, in UpdateStoryInput, now time.Time) (*domain.Story, error) {
	url := strings.TrimSpace(in.URL)
	return b.mutateStory(tenantID, id, now, func(sb storyBuckets, s *domain.Story) error {
		if url != "" && url != s.URL {
			if existing, err := sb.byURL(url); err != nil {
				return err
			} else if existing != nil {
				return fmt.Errorf("%w: %q", domain.ErrDuplicateStoryURL, url)
			}
			if err := sb.urls.Delete([]byte(s.URL)); err != nil {
				return err
			}
			if err := sb.urls.Put([]byte(url), []byte(s.ID)); err != nil {
				return err
			}
			s.URL = url
		}
		if in.Metadata != nil {
			s.Metadata = in.Metadata
		}
		return nil
	})
}

// UpdateStorySettings patches the story settings.
func (b *boltStore) UpdateStorySettings(tenantID, id string, in UpdateStorySettingsInput, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		if in.Moderation != nil {
			s.Settings.Moderation = *in.Moderation
		}
		if in.PremodLinksEnable != nil {
			s.Settings.PremodLinksEnable = *in.PremodLinksEnable
		}
		if in.MessageBox != nil {
			s.Settings.MessageBox = *in.MessageBox
		}
		if in.LiveEnabled != nil {
			s.Settings.LiveEnabled = *in.LiveEnabled
		}
		return nil
	})
}

// UpdateStoryMetadata stores scraped metadata and marks the story scraped.
func (b *boltStore) UpdateStoryMetadata(tenantID, id string, md *domain.StoryMetadata, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		s.Metadata = md
		scrapedAt := now
		s.ScrapedAt = &scrapedAt
		return nil
	})
}

// OpenStory clears ClosedAt and records the reopen so auto-close no longer applies.
func (b *boltStore) OpenStory(tenantID, id string, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		reopened := now
		s.ClosedAt = nil
		s.ReopenedAt = &reopened
		return nil
	})
}

// CloseStory closes the story stream at now.
func (b *boltStore) CloseStory(tenantID, id string, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		closed := now
		s.ClosedAt = &closed
		return nil
	})
}

// RetrieveStory returns the story with id, or nil.
func (b *boltStore) RetrieveStory(tenantID, id string) (*domain.Story, error) {
	return b.FindStory(tenantID, FindStoryInput{ID: id})
}

// RetrieveManyStories loads ids in a single read transaction. The result is
// aligned with ids and holds nil for every id that was not found.
func (b *boltStore) RetrieveManyStories(tenantID string, ids []string) ([]*domain.Story, error) {
	out := make([]*domain.Story, len(ids))
	err := b.db.View(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, tenantID)
		if err != nil {
			return err
		}
		if sb.stories == nil {
			return nil
		}
		for i, id := range ids {
			if out[i], err = sb.byID(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveStory deletes a story and returns it, or nil if it was already gone.
func (b *boltStore) RemoveStory(tenantID, id string) (*domain.Story, error) {
	var removed *domain.Story
	err := b.db.Update(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, tenantID)
		if err != nil {
			return err
		}
		story, err := sb.byID(id)
		if err != nil || story == nil {
			return err
		}
		if err := sb.delete(story); err != nil {
			return err
		}
		removed = story
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// RemoveStories deletes every story in ids and returns how many existed.
func (b *boltStore) RemoveStories(tenantID string, ids []string) (int, error) {
	deleted := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, tenantID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			story, err := sb.byID(id)
			if err != nil {
				return err
			}
			if story == nil {
				continue
			}
			if err := sb.delete(story); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// SetStoryCommentStatusCount replaces the status counts of a story.
func (b *boltStore) SetStoryCommentStatusCount(tenantID, id string, counts domain.StatusCounts, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		next := make(domain.StatusCounts, len(counts))
		for status, n := range counts {
			next[status] = max(n, 0)
		}
		s.CommentCounts.Status = next
		return nil
	})
}

// IncrementStoryCommentStatusCount adds delta to the status counts of a
// story. Counts never drop below zero.
func (b *boltStore) IncrementStoryCommentStatusCount(tenantID, id string, delta domain.StatusCounts, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		s.CommentCounts.Status = incrementStatus(s.CommentCounts.Status, delta)
		return nil
	})
}

// SetStoryActionCounts replaces the action counts of a story.
func (b *boltStore) SetStoryActionCounts(tenantID, id string, counts domain.ActionCounts, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		s.CommentCounts.Action = counts.Clone()
		return nil
	})
}

// IncrementStoryActionCounts adds delta to the action counts of a story.
func (b *boltStore) IncrementStoryActionCounts(tenantID, id string, delta domain.ActionCounts, now time.Time) (*domain.Story, error) {
	return b.mutateStory(tenantID, id, now, func(_ storyBuckets, s *domain.Story) error {
		s.CommentCounts.Action = incrementAction(s.CommentCounts.Action, delta)
		return nil
	})
}

func incrementStatus(current, delta domain.StatusCounts) domain.StatusCounts {
	out := current.Clone()
	for status, n := range delta {
		out[status] = max(out[status]+n, 0)
	}
	return out
}

func incrementAction(current, delta domain.ActionCounts) domain.ActionCounts {
	out := current.Clone()
	for tag, n := range delta {
		out[tag] = max(out[tag]+n, 0)
	}
	return out
}
