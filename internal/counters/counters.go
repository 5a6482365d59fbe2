// Package counters mirrors story comment counts into Redis. Writes are best
// effort: the document store stays the source of truth.
package counters

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
)

// Cache stores a copy of story counts.
type Cache interface {
	SetStoryCounts(ctx context.Context, tenantID, storyID string, counts domain.CommentCounts) error
	StoryCounts(ctx context.Context, tenantID, storyID string) (domain.CommentCounts, error)
	DeleteStory(ctx context.Context, tenantID, storyID string) error
}

// RedisCache keeps counts in two hashes per story.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient creates a client from a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func statusKey(tenantID, storyID string) string {
	return fmt.Sprintf("%s:story:%s:counts:status", tenantID, storyID)
}

func actionKey(tenantID, storyID string) string {
	return fmt.Sprintf("%s:story:%s:counts:action", tenantID, storyID)
}

// SetStoryCounts replaces both hashes in a single MULTI block.
func (c *RedisCache) SetStoryCounts(ctx context.Context, tenantID, storyID string, counts domain.CommentCounts) error {
	sk, ak := statusKey(tenantID, storyID), actionKey(tenantID, storyID)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sk, ak)
		if len(counts.Status) > 0 {
			values := make(map[string]interface{}, len(counts.Status))
			for status, n := range counts.Status {
				values[string(status)] = n
			}
			pipe.HSet(ctx, sk, values)
		}
		if len(counts.Action) > 0 {
			values := make(map[string]interface{}, len(counts.Action))
			for tag, n := range counts.Action {
				values[string(tag)] = n
			}
			pipe.HSet(ctx, ak, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set story counts: %w", err)
	}
	return nil
}

// StoryCounts reads both hashes back.
func (c *RedisCache) StoryCounts(ctx context.Context, tenantID, storyID string) (domain.CommentCounts, error) {
	out := domain.CommentCounts{Status: domain.StatusCounts{}, Action: domain.ActionCounts{}}

	status, err := c.client.HGetAll(ctx, statusKey(tenantID, storyID)).Result()
	if err != nil {
		return out, fmt.Errorf("read status counts: %w", err)
	}
	for k, v := range status {
		n, err := strconv.Atoi(v)
		if err != nil {
			return out, fmt.Errorf("parse status count %q: %w", k, err)
		}
		out.Status[domain.CommentStatus(k)] = n
	}

	action, err := c.client.HGetAll(ctx, actionKey(tenantID, storyID)).Result()
	if err != nil {
		return out, fmt.Errorf("read action counts: %w", err)
	}
	for k, v := range action {
		n, err := strconv.Atoi(v)
		if err != nil {
			return out, fmt.Errorf("parse action count %q: %w", k, err)
		}
		out.Action[domain.ActionTag(k)] = n
	}
	return out, nil
}

// DeleteStory drops the cached counts of a story.
func (c *RedisCache) DeleteStory(ctx context.Context, tenantID, storyID string) error {
	if err := c.client.Del(ctx, statusKey(tenantID, storyID), actionKey(tenantID, storyID)).Err(); err != nil {
		return fmt.Errorf("delete story counts: %w", err)
	}
	return nil
}

// Nop is used when Redis is disabled.
type Nop struct{}

func (Nop) SetStoryCounts(context.Context, string, string, domain.CommentCounts) error { return nil }
func (Nop) StoryCounts(context.Context, string, string) (domain.CommentCounts, error) {
	return domain.CommentCounts{Status: domain.StatusCounts{}, Action: domain.ActionCounts{}}, nil
}
func (Nop) DeleteStory(context.Context, string, string) error { return nil }
