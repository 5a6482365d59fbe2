package stories

import (
	"context"
	"errors"
	"testing"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/pkg/publishers"
)

func TestRemoveMissingStoryReturnsNil(t *testing.T) {
	h := newHarness(t)

	story, err := h.svc.Remove(context.Background(), h.tenant, "missing", false)
	if err != nil || story != nil {
		t.Fatalf("expected nil, nil; got %v, %v", story, err)
	}
	if h.repo.writeCount() != 0 {
		t.Fatalf("expected no writes, got %v", h.repo.writes)
	}
}

func TestRemoveWithLinkedCommentsFails(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "s1", "https://example.com/a", domain.StatusCounts{domain.StatusApproved: 1}, nil)

	_, err := h.svc.Remove(context.Background(), h.tenant, "s1", false)
	if !errors.Is(err, domain.ErrStoryHasLinkedComments) {
		t.Fatalf("expected ErrStoryHasLinkedComments, got %v", err)
	}
	if h.repo.writeCount() != 0 {
		t.Fatalf("expected no writes, got %v", h.repo.writes)
	}
	if story, _ := h.repo.RetrieveStory("t1", "s1"); story == nil {
		t.Fatalf("story must not be deleted")
	}
}

func TestRemoveWithoutCommentsDeletesStory(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "s1", "https://example.com/a", domain.StatusCounts{domain.StatusApproved: 0}, nil)

	story, err := h.svc.Remove(context.Background(), h.tenant, "s1", false)
	if err != nil || story == nil || story.ID != "s1" {
		t.Fatalf("Remove: %v %#v", err, story)
	}
	if got := h.events.types(); len(got) != 1 || got[0] != publishers.EventStoryRemoved {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestRemoveIncludeCommentsDeletesActionsBeforeComments(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "s1", "https://example.com/a", nil, nil)
	if err := h.repo.CreateComment(domain.Comment{ID: "c1", TenantID: "t1", StoryID: "s1", Status: domain.StatusApproved}); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := h.repo.CreateCommentAction(domain.CommentAction{ID: "a1", TenantID: "t1", CommentID: "c1", ActionType: domain.ActionFlag}); err != nil {
		t.Fatalf("CreateCommentAction: %v", err)
	}
	h.repo.reset()

	story, err := h.svc.Remove(context.Background(), h.tenant, "s1", true)
	if err != nil || story == nil {
		t.Fatalf("Remove: %v %#v", err, story)
	}

	want := []string{"RemoveStoryActions", "RemoveStoryComments", "RemoveStory"}
	if len(h.repo.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", h.repo.writes, want)
	}
	for i := range want {
		if h.repo.writes[i] != want[i] {
			t.Fatalf("writes = %v, want %v", h.repo.writes, want)
		}
	}
	if c, _ := h.repo.RetrieveComment("t1", "c1"); c != nil {
		t.Fatalf("comment should be deleted")
	}
	if n, _ := h.repo.CountStoryActions("t1", "s1"); n != 0 {
		t.Fatalf("actions should be deleted, got %d", n)
	}
}
