package stories

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/pkg/publishers"
)

// Remove deletes a story. With includeComments its actions and comments are
// deleted first (actions before comments); without it a story that still
// has comments is refused with domain.ErrStoryHasLinkedComments. A missing
// story yields nil.
func (s *Service) Remove(ctx context.Context, tenant *domain.Tenant, storyID string, includeComments bool) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	log := s.log.With("tenant_id", tenant.ID).With("story_id", storyID).With("include_comments", includeComments)

	log.DebugObj("starting to remove story", "story_id", storyID)

	story, err := s.repo.RetrieveStory(tenant.ID, storyID)
	if err != nil {
		observe("remove", nil, err)
		return nil, fmt.Errorf("retrieve story: %w", err)
	}
	if story == nil {
		log.WarnObj("attempted to remove story that wasn't found", "story_id", storyID)
		observe("remove", nil, nil)
		return nil, nil
	}

	if includeComments {
		removedActions, err := s.repo.RemoveStoryActions(tenant.ID, story.ID)
		if err != nil {
			observe("remove", nil, err)
			return nil, fmt.Errorf("remove story actions: %w", err)
		}
		log.DebugObj("removed actions while deleting story", "removed_actions", removedActions)

		removedComments, err := s.repo.RemoveStoryComments(tenant.ID, story.ID)
		if err != nil {
			observe("remove", nil, err)
			return nil, fmt.Errorf("remove story comments: %w", err)
		}
		log.DebugObj("removed comments while deleting story", "removed_comments", removedComments)
	} else if domain.CalculateTotalCommentCount(story.CommentCounts.Status) > 0 {
		log.WarnObj("attempted to remove story that has linked comments without consent for deleting comments",
			"comment_counts", story.CommentCounts.Status)
		observe("remove", nil, domain.ErrStoryHasLinkedComments)
		return nil, domain.ErrStoryHasLinkedComments
	}

	removed, err := s.repo.RemoveStory(tenant.ID, story.ID)
	observe("remove", removed, err)
	if err != nil {
		return nil, fmt.Errorf("remove story: %w", err)
	}
	if removed == nil {
		return nil, nil
	}

	log.DebugObj("removed story", "story_id", removed.ID)
	s.dropCounts(ctx, tenant.ID, removed.ID)
	s.emit(ctx, publishers.NewEvent(publishers.EventStoryRemoved, removed).WithData("include_comments", includeComments))
	return removed, nil
}
