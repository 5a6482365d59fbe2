package stories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/samvad-hq/samvad-story-service/internal/config"
	"github.com/samvad-hq/samvad-story-service/internal/counters"
	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/pkg/publishers"
)

func TestMergeWithNoSourcesReturnsNilWithoutWrites(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "dest", "https://example.com/dest", nil, nil)

	for _, sources := range [][]string{nil, {}, {"dest"}} {
		story, err := h.svc.Merge(context.Background(), h.tenant, "dest", sources)
		if err != nil || story != nil {
			t.Fatalf("sources %v: expected nil, nil; got %v, %v", sources, story, err)
		}
	}
	if h.repo.writeCount() != 0 {
		t.Fatalf("expected no writes, got %v", h.repo.writes)
	}
}

func TestMergeWithMissingStoryReturnsNilWithoutWrites(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "dest", "https://example.com/dest", domain.StatusCounts{domain.StatusApproved: 1}, nil)
	h.seedStory(t, "a", "https://example.com/a", domain.StatusCounts{domain.StatusApproved: 2}, nil)

	story, err := h.svc.Merge(context.Background(), h.tenant, "dest", []string{"a", "missing"})
	if err != nil || story != nil {
		t.Fatalf("expected nil, nil; got %v, %v", story, err)
	}
	if h.repo.writeCount() != 0 {
		t.Fatalf("expected no writes, got %v", h.repo.writes)
	}

	story, err = h.svc.Merge(context.Background(), h.tenant, "missing-dest", []string{"a"})
	if err != nil || story != nil {
		t.Fatalf("missing destination: expected nil, nil; got %v, %v", story, err)
	}
	if h.repo.writeCount() != 0 {
		t.Fatalf("expected no writes, got %v", h.repo.writes)
	}
}

func TestMergeReplacesDestinationCountsWithSourceCounts(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "dest", "https://example.com/dest", domain.StatusCounts{domain.StatusApproved: 2}, nil)
	h.seedStory(t, "src", "https://example.com/src", domain.StatusCounts{domain.StatusApproved: 3, domain.StatusRejected: 1}, nil)

	story, err := h.svc.Merge(context.Background(), h.tenant, "dest", []string{"src"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got := story.CommentCounts.Status
	if got[domain.StatusApproved] != 3 || got[domain.StatusRejected] != 1 || len(got) != 2 {
		t.Fatalf("unexpected destination counts %v", got)
	}
	if src, _ := h.repo.RetrieveStory("t1", "src"); src != nil {
		t.Fatalf("source story must be deleted")
	}
	if dest, _ := h.repo.RetrieveStory("t1", "dest"); dest == nil {
		t.Fatalf("destination story must survive")
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	run := func(order []string) domain.StatusCounts {
		h := newHarness(t)
		h.seedStory(t, "dest", "https://example.com/dest", nil, nil)
		h.seedStory(t, "a", "https://example.com/a", domain.StatusCounts{domain.StatusApproved: 1, domain.StatusPremod: 4}, nil)
		h.seedStory(t, "b", "https://example.com/b", domain.StatusCounts{domain.StatusApproved: 5}, nil)
		story, err := h.svc.Merge(context.Background(), h.tenant, "dest", order)
		if err != nil || story == nil {
			t.Fatalf("Merge %v: %v", order, err)
		}
		return story.CommentCounts.Status
	}

	ab, ba := run([]string{"a", "b"}), run([]string{"b", "a"})
	if ab[domain.StatusApproved] != 6 || ab[domain.StatusPremod] != 4 {
		t.Fatalf("unexpected merged counts %v", ab)
	}
	if ab[domain.StatusApproved] != ba[domain.StatusApproved] || ab[domain.StatusPremod] != ba[domain.StatusPremod] {
		t.Fatalf("merge depends on order: %v vs %v", ab, ba)
	}
}

func TestMergeAccumulateAddsDestinationCounts(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MergeCountsMode = config.MergeCountsAccumulate })
	h.seedStory(t, "dest", "https://example.com/dest",
		domain.StatusCounts{domain.StatusApproved: 2}, domain.ActionCounts{domain.ActionFlag: 1})
	h.seedStory(t, "src", "https://example.com/src",
		domain.StatusCounts{domain.StatusApproved: 3, domain.StatusRejected: 1}, domain.ActionCounts{domain.ActionFlag: 2})

	story, err := h.svc.Merge(context.Background(), h.tenant, "dest", []string{"src"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if story.CommentCounts.Status[domain.StatusApproved] != 5 || story.CommentCounts.Status[domain.StatusRejected] != 1 {
		t.Fatalf("unexpected status counts %v", story.CommentCounts.Status)
	}
	if story.CommentCounts.Action[domain.ActionFlag] != 3 {
		t.Fatalf("unexpected action counts %v", story.CommentCounts.Action)
	}
}

func TestMergeSkipsActionWriteWhenNoActions(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "dest", "https://example.com/dest", nil, domain.ActionCounts{domain.ActionFlag: 7})
	h.seedStory(t, "src", "https://example.com/src", domain.StatusCounts{domain.StatusApproved: 1}, nil)

	story, err := h.svc.Merge(context.Background(), h.tenant, "dest", []string{"src"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	for _, w := range h.repo.writes {
		if w == "SetStoryActionCounts" || w == "IncrementStoryActionCounts" {
			t.Fatalf("action counts must not be written, writes=%v", h.repo.writes)
		}
	}
	if story.CommentCounts.Action[domain.ActionFlag] != 7 {
		t.Fatalf("destination action counts changed: %v", story.CommentCounts.Action)
	}
}

func TestMergeRepointsCommentsAndActions(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "dest", "https://example.com/dest", nil, nil)
	h.seedStory(t, "src", "https://example.com/src", nil, nil)

	if err := h.repo.CreateComment(domain.Comment{ID: "c1", TenantID: "t1", StoryID: "src", Status: domain.StatusApproved}); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := h.repo.CreateCommentAction(domain.CommentAction{ID: "a1", TenantID: "t1", CommentID: "c1", ActionType: domain.ActionFlag}); err != nil {
		t.Fatalf("CreateCommentAction: %v", err)
	}

	story, err := h.svc.Merge(context.Background(), h.tenant, "dest", []string{"src"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	comment, _ := h.repo.RetrieveComment("t1", "c1")
	if comment == nil || comment.StoryID != "dest" {
		t.Fatalf("comment not repointed: %#v", comment)
	}
	if n, _ := h.repo.CountStoryActions("t1", "dest"); n != 1 {
		t.Fatalf("expected 1 action on destination, got %d", n)
	}
	if story.CommentCounts.Status[domain.StatusApproved] != 1 || story.CommentCounts.Action[domain.ActionFlag] != 1 {
		t.Fatalf("unexpected counts %#v", story.CommentCounts)
	}

	types := h.events.types()
	if len(types) != 1 || types[0] != publishers.EventStoryMerged {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestMergeKeepsSourcesWhenDestinationVanishes(t *testing.T) {
	h := newHarness(t)
	h.seedStory(t, "dest", "https://example.com/dest", nil, nil)
	h.seedStory(t, "src", "https://example.com/src", domain.StatusCounts{domain.StatusApproved: 1}, nil)
	h.repo.beforeStatusWrite = func() {
		if _, err := h.repo.Store.RemoveStory("t1", "dest"); err != nil {
			t.Errorf("remove dest: %v", err)
		}
	}

	story, err := h.svc.Merge(context.Background(), h.tenant, "dest", []string{"src"})
	if err != nil || story != nil {
		t.Fatalf("expected nil, nil; got %v, %v", story, err)
	}
	if src, _ := h.repo.RetrieveStory("t1", "src"); src == nil {
		t.Fatalf("sources must not be deleted when the destination vanished")
	}
	for _, w := range h.repo.writes {
		if w == "RemoveStories" {
			t.Fatalf("RemoveStories must not run, writes=%v", h.repo.writes)
		}
	}
}

func TestMergeUpdatesCountCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := counters.NewRedisCache(client)

	h := newHarness(t, func(o *Options) { o.Counts = cache })
	h.seedStory(t, "dest", "https://example.com/dest", nil, nil)
	h.seedStory(t, "src", "https://example.com/src", domain.StatusCounts{domain.StatusApproved: 4}, nil)

	ctx := context.Background()
	if err := cache.SetStoryCounts(ctx, "t1", "src", domain.CommentCounts{Status: domain.StatusCounts{domain.StatusApproved: 4}}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := h.svc.Merge(ctx, h.tenant, "dest", []string{"src"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	counts, err := cache.StoryCounts(ctx, "t1", "dest")
	if err != nil {
		t.Fatalf("StoryCounts: %v", err)
	}
	if counts.Status[domain.StatusApproved] != 4 {
		t.Fatalf("cache not updated: %v", counts.Status)
	}
	if mr.Exists("t1:story:src:counts:status") {
		t.Fatalf("source cache entry should be removed")
	}
}

func TestMergeSurvivesCacheOutage(t *testing.T) {
	// Nothing listens on port 1, so every cache call fails fast.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	h := newHarness(t, func(o *Options) { o.Counts = counters.NewRedisCache(client) })
	h.seedStory(t, "dest", "https://example.com/dest", nil, nil)
	h.seedStory(t, "src", "https://example.com/src", domain.StatusCounts{domain.StatusApproved: 1}, nil)

	story, err := h.svc.Merge(context.Background(), h.tenant, "dest", []string{"src"})
	if err != nil || story == nil {
		t.Fatalf("cache failures must not fail merge: %v", err)
	}
}
