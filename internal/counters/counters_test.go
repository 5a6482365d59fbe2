package counters

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), mr
}

func TestSetStoryCountsReplacesPreviousValues(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	first := domain.CommentCounts{
		Status: domain.StatusCounts{domain.StatusApproved: 2, domain.StatusRejected: 1},
		Action: domain.ActionCounts{domain.ActionFlag: 4},
	}
	if err := cache.SetStoryCounts(ctx, "t1", "s1", first); err != nil {
		t.Fatalf("SetStoryCounts: %v", err)
	}
	if got := mr.HGet("t1:story:s1:counts:status", "APPROVED"); got != "2" {
		t.Fatalf("APPROVED = %q", got)
	}

	second := domain.CommentCounts{Status: domain.StatusCounts{domain.StatusApproved: 5}}
	if err := cache.SetStoryCounts(ctx, "t1", "s1", second); err != nil {
		t.Fatalf("SetStoryCounts: %v", err)
	}

	got, err := cache.StoryCounts(ctx, "t1", "s1")
	if err != nil {
		t.Fatalf("StoryCounts: %v", err)
	}
	if len(got.Status) != 1 || got.Status[domain.StatusApproved] != 5 {
		t.Fatalf("unexpected status counts %#v", got.Status)
	}
	if len(got.Action) != 0 {
		t.Fatalf("action counts should be cleared, got %#v", got.Action)
	}
}

func TestDeleteStory(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if err := cache.SetStoryCounts(ctx, "t1", "s1", domain.CommentCounts{
		Status: domain.StatusCounts{domain.StatusApproved: 1},
	}); err != nil {
		t.Fatalf("SetStoryCounts: %v", err)
	}
	if err := cache.DeleteStory(ctx, "t1", "s1"); err != nil {
		t.Fatalf("DeleteStory: %v", err)
	}
	if mr.Exists("t1:story:s1:counts:status") {
		t.Fatalf("status hash should be deleted")
	}
}

func TestSetStoryCountsReportsRedisErrors(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	err := cache.SetStoryCounts(context.Background(), "t1", "s1", domain.CommentCounts{
		Status: domain.StatusCounts{domain.StatusApproved: 1},
	})
	if err == nil {
		t.Fatalf("expected error when redis is down")
	}
}
