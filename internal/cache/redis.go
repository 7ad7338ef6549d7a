package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmoskov/shadowsky/internal/event"
)

// defaultRedisKey is the hash that holds all post facts, one field per URI.
const defaultRedisKey = "shadowsky:post_facts"

// Redis is a post-fact cache backing over a hosted Redis instance.
//
// Intended for deployments where several client sessions share one fact
// cache: ancestry fetched by any session becomes available to all.
// Facts are stored as JSON values in a single hash keyed by URI.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis creates a Redis backing on the given client.
// An empty key selects the default hash.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = defaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// Load returns all persisted facts.
func (r *Redis) Load(ctx context.Context) ([]event.PostFact, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load post facts from redis: %w", err)
	}

	posts := make([]event.PostFact, 0, len(fields))
	for uri, raw := range fields {
		var p event.PostFact
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode post fact %s: %w", uri, err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Save persists facts into the hash.
//
// The no-downgrade rule is enforced by read-merge-write per fact:
// Redis has no conditional column update, so an existing fact is
// loaded, merged, and written back. Concurrent savers may interleave,
// but since merges only ever add ancestry, the result converges.
func (r *Redis) Save(ctx context.Context, posts []event.PostFact) error {
	for _, p := range posts {
		if p.URI == "" {
			continue
		}

		raw, err := r.client.HGet(ctx, r.key, p.URI).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("read post fact %s from redis: %w", p.URI, err)
		}
		merged := p
		if err == nil {
			var existing event.PostFact
			if jsonErr := json.Unmarshal([]byte(raw), &existing); jsonErr != nil {
				return fmt.Errorf("decode existing post fact %s: %w", p.URI, jsonErr)
			}
			merged = existing
			if p.ParentURI != "" && existing.ParentURI == "" {
				merged.ParentURI = p.ParentURI
			}
			if p.RootURI != "" && existing.RootURI == "" {
				merged.RootURI = p.RootURI
			}
			if p.Content != "" && existing.Content == "" {
				merged.Content = p.Content
			}
		}

		encoded, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode post fact %s: %w", p.URI, err)
		}
		if err := r.client.HSet(ctx, r.key, p.URI, encoded).Err(); err != nil {
			return fmt.Errorf("write post fact %s to redis: %w", p.URI, err)
		}
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
