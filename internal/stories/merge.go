package stories

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-story-service/internal/config"
	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/pkg/publishers"
)

// Merge folds sourceIDs into destinationID: comments and actions are
// repointed, the destination counts are rewritten and the sources deleted.
// It returns nil without writing when there are no sources or any story is
// missing. If the destination vanishes after the repoint the sources are
// kept and nil is returned.
func (s *Service) Merge(ctx context.Context, tenant *domain.Tenant, destinationID string, sourceIDs []string) (*domain.Story, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	sourceIDs = normalizeSources(destinationID, sourceIDs)
	log := s.log.With("tenant_id", tenant.ID).With("destination_id", destinationID).With("source_ids", sourceIDs)

	if len(sourceIDs) == 0 {
		log.WarnObj("cannot merge from 0 stories", "destination_id", destinationID)
		observe("merge", nil, nil)
		return nil, nil
	}

	storyIDs := append([]string{destinationID}, sourceIDs...)
	stories, err := s.repo.RetrieveManyStories(tenant.ID, storyIDs)
	if err != nil {
		observe("merge", nil, err)
		return nil, fmt.Errorf("retrieve stories: %w", err)
	}
	for i, id := range storyIDs {
		if i >= len(stories) || stories[i] == nil {
			log.WarnObj("story that was going to be merged was not found", "story_id", id)
			observe("merge", nil, nil)
			return nil, nil
		}
	}
	sources := stories[1:]

	updatedComments, err := s.repo.MergeManyCommentStories(tenant.ID, destinationID, sourceIDs)
	if err != nil {
		observe("merge", nil, err)
		return nil, fmt.Errorf("merge comment stories: %w", err)
	}
	log.DebugObj("updated comments while merging stories", "updated_comments", updatedComments)

	updatedActions, err := s.repo.MergeManyStoryActions(tenant.ID, destinationID, sourceIDs)
	if err != nil {
		observe("merge", nil, err)
		return nil, fmt.Errorf("merge story actions: %w", err)
	}
	log.DebugObj("updated actions while merging stories", "updated_actions", updatedActions)

	destination, err := s.mergeCounts(tenant.ID, destinationID, sources)
	if err != nil {
		observe("merge", nil, err)
		return nil, err
	}
	if destination == nil {
		log.WarnObj("destination story cannot be updated with new comment counts", "destination_id", destinationID)
		observe("merge", nil, nil)
		return nil, nil
	}
	log.DebugObj("updated destination story with new comment counts", "comment_counts", destination.CommentCounts.Status)

	deleted, err := s.repo.RemoveStories(tenant.ID, sourceIDs)
	observe("merge", destination, err)
	if err != nil {
		return nil, fmt.Errorf("remove source stories: %w", err)
	}
	log.DebugObj("deleted source stories", "deleted_stories", deleted)

	s.syncCounts(ctx, destination)
	for _, id := range sourceIDs {
		s.dropCounts(ctx, tenant.ID, id)
	}
	s.emit(ctx, publishers.NewEvent(publishers.EventStoryMerged, destination).
		WithData("source_ids", sourceIDs).
		WithData("updated_comments", updatedComments).
		WithData("updated_actions", updatedActions).
		WithData("deleted_stories", deleted))

	return destination, nil
}

// mergeCounts writes the merged source counts onto the destination. In
// replace mode the destination status counts become the merged source
// counts; in accumulate mode they are added. Action counts are only written
// when the merged total is positive.
func (s *Service) mergeCounts(tenantID, destinationID string, sources []*domain.Story) (*domain.Story, error) {
	statuses := make([]domain.StatusCounts, 0, len(sources))
	actions := make([]domain.ActionCounts, 0, len(sources))
	for _, src := range sources {
		statuses = append(statuses, src.CommentCounts.Status)
		actions = append(actions, src.CommentCounts.Action)
	}
	mergedStatus := domain.MergeCommentStatusCount(statuses)
	mergedActions := domain.MergeCommentActionCounts(actions...)

	now := s.clock()
	accumulate := s.mergeMode == config.MergeCountsAccumulate

	var (
		destination *domain.Story
		err         error
	)
	if accumulate {
		destination, err = s.repo.IncrementStoryCommentStatusCount(tenantID, destinationID, mergedStatus, now)
	} else {
		destination, err = s.repo.SetStoryCommentStatusCount(tenantID, destinationID, mergedStatus, now)
	}
	if err != nil {
		return nil, fmt.Errorf("update destination status counts: %w", err)
	}

	if domain.CountTotalActionCounts(mergedActions) > 0 {
		if accumulate {
			destination, err = s.repo.IncrementStoryActionCounts(tenantID, destinationID, mergedActions, now)
		} else {
			destination, err = s.repo.SetStoryActionCounts(tenantID, destinationID, mergedActions, now)
		}
		if err != nil {
			return nil, fmt.Errorf("update destination action counts: %w", err)
		}
	}
	return destination, nil
}

// normalizeSources drops blanks, repeats and the destination itself so a
// story is never merged into itself or counted twice.
func normalizeSources(destinationID string, sourceIDs []string) []string {
	seen := make(map[string]struct{}, len(sourceIDs))
	out := make([]string, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if id == "" || id == destinationID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
