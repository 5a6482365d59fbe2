package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestFindOrCreateStoryIsIdempotent(t *testing.T) {
	store := openTestStore(t, Options{})

	first, err := store.FindOrCreateStory("t1", FindOrCreateStoryInput{URL: "https://example.com/a"}, testNow)
	if err != nil || first == nil {
		t.Fatalf("FindOrCreateStory: story=%v err=%v", first, err)
	}
	second, err := store.FindOrCreateStory("t1", FindOrCreateStoryInput{URL: "https://example.com/a"}, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("FindOrCreateStory second: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same id, got %q and %q", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(testNow) {
		t.Fatalf("story was recreated: %v", second.CreatedAt)
	}
}

func TestFindOrCreateStoryByIDWithoutURLReturnsNil(t *testing.T) {
	store := openTestStore(t, Options{})

	story, err := store.FindOrCreateStory("t1", FindOrCreateStoryInput{ID: "missing"}, testNow)
	if err != nil {
		t.Fatalf("FindOrCreateStory: %v", err)
	}
	if story != nil {
		t.Fatalf("expected nil story, got %#v", story)
	}

	story, err = store.FindOrCreateStory("t1", FindOrCreateStoryInput{ID: "s1", URL: "https://example.com/s1"}, testNow)
	if err != nil || story == nil || story.ID != "s1" {
		t.Fatalf("expected story s1, got %#v err=%v", story, err)
	}
}

func TestStoriesAreTenantScoped(t *testing.T) {
	store := openTestStore(t, Options{})

	if _, err := store.CreateStory("t1", "s1", "https://example.com/a", CreateStoryInput{}, testNow); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}

	story, err := store.RetrieveStory("t2", "s1")
	if err != nil {
		t.Fatalf("RetrieveStory: %v", err)
	}
	if story != nil {
		t.Fatalf("tenant t2 must not see t1 stories")
	}

	if _, err := store.CreateStory("t2", "s1", "https://example.com/a", CreateStoryInput{}, testNow); err != nil {
		t.Fatalf("same id in another tenant should be allowed: %v", err)
	}
}

func TestCreateStoryRejectsDuplicates(t *testing.T) {
	store := openTestStore(t, Options{})

	if _, err := store.CreateStory("t1", "s1", "https://example.com/a", CreateStoryInput{}, testNow); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	_, err := store.CreateStory("t1", "s1", "https://example.com/b", CreateStoryInput{}, testNow)
	if !errors.Is(err, domain.ErrDuplicateStoryID) {
		t.Fatalf("expected ErrDuplicateStoryID, got %v", err)
	}
	_, err = store.CreateStory("t1", "s2", "https://example.com/a", CreateStoryInput{}, testNow)
	if !errors.Is(err, domain.ErrDuplicateStoryURL) {
		t.Fatalf("expected ErrDuplicateStoryURL, got %v", err)
	}
}

func TestUpdateStoryMovesURLIndex(t *testing.T) {
	store := openTestStore(t, Options{})
	if _, err := store.CreateStory("t1", "s1", "https://example.com/a", CreateStoryInput{}, testNow); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}

	later := testNow.Add(time.Hour)
	updated, err := store.UpdateStory("t1", "s1", UpdateStoryInput{
		URL:      "https://example.com/b",
		Metadata: &domain.StoryMetadata{Title: "B"},
	}, later)
	if err != nil || updated == nil {
		t.Fatalf("UpdateStory: %v", err)
	}
	if !updated.UpdatedAt.Equal(later) || updated.Metadata.Title != "B" {
		t.Fatalf("unexpected update %#v", updated)
	}

	if old, _ := store.FindStory("t1", FindStoryInput{URL: "https://example.com/a"}); old != nil {
		t.Fatalf("old url should no longer resolve")
	}
	if cur, _ := store.FindStory("t1", FindStoryInput{URL: "https://example.com/b"}); cur == nil || cur.ID != "s1" {
		t.Fatalf("new url should resolve to s1, got %#v", cur)
	}

	missing, err := store.UpdateStory("t1", "nope", UpdateStoryInput{URL: "https://example.com/c"}, later)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing story, got %#v err=%v", missing, err)
	}
}

func TestOpenCloseAndSettings(t *testing.T) {
	store := openTestStore(t, Options{})
	if _, err := store.CreateStory("t1", "s1", "https://example.com/a", CreateStoryInput{}, testNow); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}

	closed, err := store.CloseStory("t1", "s1", testNow)
	if err != nil || closed.ClosedAt == nil {
		t.Fatalf("CloseStory: %#v err=%v", closed, err)
	}
	opened, err := store.OpenStory("t1", "s1", testNow.Add(time.Minute))
	if err != nil || opened.ClosedAt != nil || opened.ReopenedAt == nil {
		t.Fatalf("OpenStory: %#v err=%v", opened, err)
	}

	pre := domain.ModerationPre
	live := true
	updated, err := store.UpdateStorySettings("t1", "s1", UpdateStorySettingsInput{
		Moderation:  &pre,
		LiveEnabled: &live,
		MessageBox:  &domain.MessageBox{Enabled: true, Content: "Be nice"},
	}, testNow)
	if err != nil {
		t.Fatalf("UpdateStorySettings: %v", err)
	}
	if updated.Settings.Moderation != domain.ModerationPre || !updated.Settings.LiveEnabled || updated.Settings.MessageBox.Content != "Be nice" {
		t.Fatalf("unexpected settings %#v", updated.Settings)
	}
	if updated.Settings.PremodLinksEnable {
		t.Fatalf("unset fields must stay unchanged")
	}
}

func TestRetrieveManyStoriesAlignsWithInput(t *testing.T) {
	store := openTestStore(t, Options{})
	for _, id := range []string{"a", "b"} {
		if _, err := store.CreateStory("t1", id, "https://example.com/"+id, CreateStoryInput{}, testNow); err != nil {
			t.Fatalf("CreateStory: %v", err)
		}
	}

	stories, err := store.RetrieveManyStories("t1", []string{"b", "missing", "a"})
	if err != nil {
		t.Fatalf("RetrieveManyStories: %v", err)
	}
	if len(stories) != 3 || stories[0].ID != "b" || stories[1] != nil || stories[2].ID != "a" {
		t.Fatalf("unexpected result %#v", stories)
	}

	empty, err := store.RetrieveManyStories("unknown-tenant", []string{"a"})
	if err != nil || len(empty) != 1 || empty[0] != nil {
		t.Fatalf("unknown tenant should yield nil entries, got %#v err=%v", empty, err)
	}
}

func TestRemoveStories(t *testing.T) {
	store := openTestStore(t, Options{})
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.CreateStory("t1", id, "https://example.com/"+id, CreateStoryInput{}, testNow); err != nil {
			t.Fatalf("CreateStory: %v", err)
		}
	}

	removed, err := store.RemoveStory("t1", "a")
	if err != nil || removed == nil || removed.ID != "a" {
		t.Fatalf("RemoveStory: %#v err=%v", removed, err)
	}
	again, err := store.RemoveStory("t1", "a")
	if err != nil || again != nil {
		t.Fatalf("second RemoveStory should return nil, got %#v err=%v", again, err)
	}

	n, err := store.RemoveStories("t1", []string{"b", "c", "missing"})
	if err != nil || n != 2 {
		t.Fatalf("RemoveStories: n=%d err=%v", n, err)
	}
	if s, _ := store.FindStory("t1", FindStoryInput{URL: "https://example.com/b"}); s != nil {
		t.Fatalf("url index should be cleared")
	}
}

func TestCountUpdates(t *testing.T) {
	store := openTestStore(t, Options{})
	if _, err := store.CreateStory("t1", "s1", "https://example.com/a", CreateStoryInput{}, testNow); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}

	story, err := store.SetStoryCommentStatusCount("t1", "s1", domain.StatusCounts{domain.StatusApproved: 3, domain.StatusRejected: -2}, testNow)
	if err != nil {
		t.Fatalf("SetStoryCommentStatusCount: %v", err)
	}
	if story.CommentCounts.Status[domain.StatusApproved] != 3 || story.CommentCounts.Status[domain.StatusRejected] != 0 {
		t.Fatalf("unexpected status counts %#v", story.CommentCounts.Status)
	}

	story, err = store.IncrementStoryCommentStatusCount("t1", "s1", domain.StatusCounts{domain.StatusApproved: -5, domain.StatusPremod: 1}, testNow)
	if err != nil {
		t.Fatalf("IncrementStoryCommentStatusCount: %v", err)
	}
	if story.CommentCounts.Status[domain.StatusApproved] != 0 || story.CommentCounts.Status[domain.StatusPremod] != 1 {
		t.Fatalf("status counts must clamp at zero, got %#v", story.CommentCounts.Status)
	}

	story, err = store.IncrementStoryActionCounts("t1", "s1", domain.ActionCounts{domain.ActionFlag: 2}, testNow)
	if err != nil || story.CommentCounts.Action[domain.ActionFlag] != 2 {
		t.Fatalf("IncrementStoryActionCounts: %#v err=%v", story, err)
	}
	story, err = store.SetStoryActionCounts("t1", "s1", domain.ActionCounts{domain.ActionReaction: 1}, testNow)
	if err != nil || story.CommentCounts.Action[domain.ActionFlag] != 0 || story.CommentCounts.Action[domain.ActionReaction] != 1 {
		t.Fatalf("SetStoryActionCounts: %#v err=%v", story, err)
	}

	md, err := store.UpdateStoryMetadata("t1", "s1", &domain.StoryMetadata{Title: "T"}, testNow)
	if err != nil || md.ScrapedAt == nil || md.NeedsScrape() {
		t.Fatalf("UpdateStoryMetadata: %#v err=%v", md, err)
	}
}
