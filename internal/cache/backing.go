package cache

import (
	"context"

	"github.com/dmoskov/shadowsky/internal/event"
)

// Backing is a persistence layer behind the in-memory Store.
//
// A backing warms the store at startup (Load) and receives a
// write-through after successful merges (Save). Backings are optional;
// the engine runs fine with a purely in-memory cache.
type Backing interface {
	// Load returns all persisted facts.
	Load(ctx context.Context) ([]event.PostFact, error)

	// Save persists facts. Must be idempotent and must follow the same
	// no-downgrade rule as Store.Merge: never blank a declared
	// parent_uri or root_uri.
	Save(ctx context.Context, posts []event.PostFact) error

	// Close releases resources.
	Close() error
}

// Warm loads all facts from a backing into the store.
// Returns the number of facts loaded.
func Warm(ctx context.Context, s *Store, b Backing) (int, error) {
	posts, err := b.Load(ctx)
	if err != nil {
		return 0, err
	}
	s.Merge(posts)
	return len(posts), nil
}
