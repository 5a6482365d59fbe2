package stories

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

// CommentInput describes a comment recorded against a story.
type CommentInput struct {
	ID     string
	Status domain.CommentStatus
}

// ActionInput describes an action recorded against a comment.
type ActionInput struct {
	ID         string
	ActionType domain.ActionTag
}

// CountsDelta is added to a story's aggregate counters. Negative values
// decrement; stored counts never drop below zero.
type CountsDelta struct {
	Status domain.StatusCounts
	Action domain.ActionCounts
}

// RecordComment stores a comment on storyID and bumps the story's status
// counts. It returns the updated story.
func (s *Service) RecordComment(ctx context.Context, tenant *domain.Tenant, storyID string, in CommentInput) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	comment := domain.Comment{
		ID:        in.ID,
		TenantID:  tenant.ID,
		StoryID:   storyID,
		Status:    in.Status,
		CreatedAt: s.clock(),
	}
	if err := s.repo.CreateComment(comment); err != nil {
		observe("record_comment", nil, err)
		return nil, fmt.Errorf("create comment: %w", err)
	}

	story, err := s.repo.RetrieveStory(tenant.ID, storyID)
	observe("record_comment", story, err)
	if err != nil {
		return nil, fmt.Errorf("retrieve story: %w", err)
	}
	s.log.DebugObj("recorded comment", "comment", map[string]any{
		"tenant_id":  tenant.ID,
		"story_id":   storyID,
		"comment_id": in.ID,
		"status":     comment.Status,
	})
	s.syncCounts(ctx, story)
	return story, nil
}

// RecordCommentAction stores an action on a comment of storyID and bumps the
// comment and story action counts. A comment that belongs to another story
// is reported as domain.ErrCommentNotFound.
func (s *Service) RecordCommentAction(ctx context.Context, tenant *domain.Tenant, storyID, commentID string, in ActionInput) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	comment, err := s.repo.RetrieveComment(tenant.ID, commentID)
	if err != nil {
		observe("record_action", nil, err)
		return nil, fmt.Errorf("retrieve comment: %w", err)
	}
	if comment == nil || comment.StoryID != storyID {
		observe("record_action", nil, domain.ErrCommentNotFound)
		return nil, fmt.Errorf("%w: %q", domain.ErrCommentNotFound, commentID)
	}

	action := domain.CommentAction{
		ID:         in.ID,
		TenantID:   tenant.ID,
		CommentID:  commentID,
		ActionType: in.ActionType,
		CreatedAt:  s.clock(),
	}
	if err := s.repo.CreateCommentAction(action); err != nil {
		observe("record_action", nil, err)
		return nil, fmt.Errorf("create comment action: %w", err)
	}

	story, err := s.repo.RetrieveStory(tenant.ID, storyID)
	observe("record_action", story, err)
	if err != nil {
		return nil, fmt.Errorf("retrieve story: %w", err)
	}
	s.syncCounts(ctx, story)
	return story, nil
}

// AdjustCounts applies delta to the story's counters without touching
// comment records. A missing story yields nil.
func (s *Service) AdjustCounts(ctx context.Context, tenant *domain.Tenant, storyID string, delta CountsDelta) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	now := s.clock()

	story, err := s.repo.RetrieveStory(tenant.ID, storyID)
	if err != nil {
		observe("adjust_counts", nil, err)
		return nil, fmt.Errorf("retrieve story: %w", err)
	}
	if len(delta.Status) > 0 && story != nil {
		story, err = s.repo.IncrementStoryCommentStatusCount(tenant.ID, storyID, delta.Status, now)
		if err != nil {
			observe("adjust_counts", nil, err)
			return nil, fmt.Errorf("increment status counts: %w", err)
		}
	}
	if len(delta.Action) > 0 && story != nil {
		story, err = s.repo.IncrementStoryActionCounts(tenant.ID, storyID, delta.Action, now)
		if err != nil {
			observe("adjust_counts", nil, err)
			return nil, fmt.Errorf("increment action counts: %w", err)
		}
	}
	observe("adjust_counts", story, nil)
	s.syncCounts(ctx, story)
	return story, nil
}
