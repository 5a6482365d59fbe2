package storage

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// CreateComment stores a comment and bumps the status count of its story in
// the same transaction.
func (b *boltStore) CreateComment(c domain.Comment) error {
	if c.ID == "" || c.StoryID == "" {
		return fmt.Errorf("comment id and story id are required")
	}
	if c.Status == "" {
		c.Status = domain.StatusNone
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		sb, err := openStoryBuckets(tx, c.TenantID)
		if err != nil {
			return err
		}
		story, err := sb.byID(c.StoryID)
		if err != nil {
			return err
		}
		if story == nil {
			return fmt.Errorf("%w: %q", ErrStoryNotFound, c.StoryID)
		}

		comments, err := tenantBucket(tx, commentBucket, c.TenantID)
		if err != nil {
			return err
		}
		if comments.Get([]byte(c.ID)) != nil {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateComment, c.ID)
		}
		if err := putJSON(comments, c.ID, c); err != nil {
			return err
		}

		story.CommentCounts.Status = incrementStatus(story.CommentCounts.Status, domain.StatusCounts{c.Status: 1})
		story.UpdatedAt = c.CreatedAt
		return putJSON(sb.stories, story.ID, story)
	})
}

// RetrieveComment returns the comment with id, or nil.
func (b *boltStore) RetrieveComment(tenantID, id string) (*domain.Comment, error) {
	var comment *domain.Comment
	err := b.db.View(func(tx *bolt.Tx) error {
		comments, err := tenantBucket(tx, commentBucket, tenantID)
		if err != nil {
			return err
		}
		comment, err = getJSON[domain.Comment](comments, id)
		return err
	})
	return comment, err
}

// MergeManyCommentStories repoints every comment of sourceIDs at
// destinationID and returns the number of comments modified.
func (b *boltStore) MergeManyCommentStories(tenantID, destinationID string, sourceIDs []string) (int, error) {
	return b.repointStory(commentBucket, tenantID, destinationID, sourceIDs, func(raw []byte) (recordRef, error) {
		c, err := decodeRecord[domain.Comment](raw)
		if err != nil {
			return recordRef{}, err
		}
		return recordRef{storyID: c.StoryID, set: func(id string) any { c.StoryID = id; return c }}, nil
	})
}

// RemoveStoryComments deletes every comment of storyID.
func (b *boltStore) RemoveStoryComments(tenantID, storyID string) (int, error) {
	return b.removeByStory(commentBucket, tenantID, storyID, func(raw []byte) (string, error) {
		c, err := decodeRecord[domain.Comment](raw)
		if err != nil {
			return "", err
		}
		return c.StoryID, nil
	})
}

// CreateCommentAction stores an action and bumps the action counts of its
// story and comment.
func (b *boltStore) CreateCommentAction(a domain.CommentAction) error {
	if a.ID == "" || a.CommentID == "" || a.ActionType == "" {
		return fmt.Errorf("action id, comment id and action type are required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		comments, err := tenantBucket(tx, commentBucket, a.TenantID)
		if err != nil {
			return err
		}
		comment, err := getJSON[domain.Comment](comments, a.CommentID)
		if err != nil {
			return err
		}
		if comment == nil {
			return fmt.Errorf("%w: %q", domain.ErrCommentNotFound, a.CommentID)
		}
		a.StoryID = comment.StoryID

		actions, err := tenantBucket(tx, actionBucket, a.TenantID)
		if err != nil {
			return err
		}
		if actions.Get([]byte(a.ID)) != nil {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateCommentAction, a.ID)
		}
		if err := putJSON(actions, a.ID, a); err != nil {
			return err
		}

		delta := domain.ActionCounts{a.ActionType: 1}
		comment.ActionCounts = incrementAction(comment.ActionCounts, delta)
		if err := putJSON(comments, comment.ID, comment); err != nil {
			return err
		}

		sb, err := openStoryBuckets(tx, a.TenantID)
		if err != nil {
			return err
		}
		story, err := sb.byID(comment.StoryID)
		if err != nil || story == nil {
			return err
		}
		story.CommentCounts.Action = incrementAction(story.CommentCounts.Action, delta)
		story.UpdatedAt = a.CreatedAt
		return putJSON(sb.stories, story.ID, story)
	})
}

// MergeManyStoryActions repoints every action of sourceIDs at destinationID.
func (b *boltStore) MergeManyStoryActions(tenantID, destinationID string, sourceIDs []string) (int, error) {
	return b.repointStory(actionBucket, tenantID, destinationID, sourceIDs, func(raw []byte) (recordRef, error) {
		a, err := decodeRecord[domain.CommentAction](raw)
		if err != nil {
			return recordRef{}, err
		}
		return recordRef{storyID: a.StoryID, set: func(id string) any { a.StoryID = id; return a }}, nil
	})
}

// RemoveStoryActions deletes every action that references storyID.
func (b *boltStore) RemoveStoryActions(tenantID, storyID string) (int, error) {
	return b.removeByStory(actionBucket, tenantID, storyID, func(raw []byte) (string, error) {
		a, err := decodeRecord[domain.CommentAction](raw)
		if err != nil {
			return "", err
		}
		return a.StoryID, nil
	})
}

// CountStoryActions returns the number of actions that reference storyID.
func (b *boltStore) CountStoryActions(tenantID, storyID string) (int, error) {
	count := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		actions, err := tenantBucket(tx, actionBucket, tenantID)
		if err != nil || actions == nil {
			return err
		}
		return actions.ForEach(func(_, v []byte) error {
			a, err := decodeRecord[domain.CommentAction](v)
			if err != nil {
				return err
			}
			if a.StoryID == storyID {
				count++
			}
			return nil
		})
	})
	return count, err
}

// recordRef exposes the story reference of a decoded record and a setter
// returning the record to store after repointing.
type recordRef struct {
	storyID string
	set     func(storyID string) any
}

func decodeRecord[T any](raw []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &out, nil
}

// repointStory rewrites the story reference of every record in root whose
// story is one of sourceIDs. Writes happen after the scan so the cursor is
// never invalidated.
func (b *boltStore) repointStory(root, tenantID, destinationID string, sourceIDs []string, decode func([]byte) (recordRef, error)) (int, error) {
	modified := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tenantBucket(tx, root, tenantID)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		err = bucket.ForEach(func(k, v []byte) error {
			ref, err := decode(v)
			if err != nil {
				return err
			}
			if slices.Contains(sourceIDs, ref.storyID) {
				updates[string(k)] = ref.set(destinationID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for key, record := range updates {
			if err := putJSON(bucket, key, record); err != nil {
				return err
			}
		}
		modified = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return modified, nil
}

// removeByStory deletes every record in root that references storyID.
func (b *boltStore) removeByStory(root, tenantID, storyID string, storyOf func([]byte) (string, error)) (int, error) {
	deleted := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tenantBucket(tx, root, tenantID)
		if err != nil {
			return err
		}

		var keys [][]byte
		err = bucket.ForEach(func(k, v []byte) error {
			id, err := storyOf(v)
			if err != nil {
				return err
			}
			if id == storyID {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(keys)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
