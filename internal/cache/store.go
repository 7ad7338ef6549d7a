package cache

import (
	"sort"
	"sync"

	"github.com/dmoskov/shadowsky/internal/event"
)

// Store is the in-memory post-fact cache.
//
// Append-only: Merge adds and upgrades facts, nothing removes them.
// The version counter increments on every merge that changed at least
// one fact, so a Snapshot's Version identifies exactly which fact set
// a derived view was computed from.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	facts   map[string]event.PostFact
	version int64
}

// NewStore creates an empty post-fact cache.
func NewStore() *Store {
	return &Store{facts: make(map[string]event.PostFact)}
}

// Merge upserts facts into the cache and returns how many entries
// were added or upgraded.
//
// Upgrade rules: an incoming fact never blanks a declared ParentURI or
// RootURI. Resolution quality only improves as ancestry arrives, so a
// stale or partial re-fetch must not regress what is already known.
// Facts without a URI are ignored.
func (s *Store) Merge(posts []event.PostFact) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, p := range posts {
		if p.URI == "" {
			continue
		}
		existing, ok := s.facts[p.URI]
		if !ok {
			s.facts[p.URI] = p
			changed++
			continue
		}
		merged := existing
		if p.ParentURI != "" && existing.ParentURI == "" {
			merged.ParentURI = p.ParentURI
		}
		if p.RootURI != "" && existing.RootURI == "" {
			merged.RootURI = p.RootURI
		}
		if p.Content != "" && existing.Content == "" {
			merged.Content = p.Content
		}
		if merged != existing {
			s.facts[p.URI] = merged
			changed++
		}
	}

	if changed > 0 {
		s.version++
	}
	return changed
}

// Lookup returns the cached facts for the requested URIs and the set
// that is not cached. Order follows the request order.
func (s *Store) Lookup(uris []string) (found []event.PostFact, missing []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, uri := range uris {
		if f, ok := s.facts[uri]; ok {
			found = append(found, f)
		} else {
			missing = append(missing, uri)
		}
	}
	return found, missing
}

// Snapshot returns an immutable view of the current fact set.
//
// The snapshot shares no state with the store; later merges do not
// show through. All pure computation takes a Snapshot, never a *Store.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := make(map[string]event.PostFact, len(s.facts))
	for k, v := range s.facts {
		facts[k] = v
	}
	return &Snapshot{facts: facts, version: s.version}
}

// Len returns the number of cached facts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// Version returns the current cache version.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot is a frozen view of the fact cache at a specific version.
type Snapshot struct {
	facts   map[string]event.PostFact
	version int64
}

// NewSnapshot builds a standalone snapshot from a fact list.
// Intended for tests that exercise pure computation without a Store.
//
// Consumers memoize by version, so distinct fact sets must carry
// distinct versions; the Store guarantees this, hand-built snapshots
// must too.
func NewSnapshot(posts []event.PostFact, version int64) *Snapshot {
	facts := make(map[string]event.PostFact, len(posts))
	for _, p := range posts {
		if p.URI != "" {
			facts[p.URI] = p
		}
	}
	return &Snapshot{facts: facts, version: version}
}

// Get returns the fact for a URI, if cached.
func (s *Snapshot) Get(uri string) (event.PostFact, bool) {
	f, ok := s.facts[uri]
	return f, ok
}

// Lookup returns cached facts for the requested URIs and the missing set.
func (s *Snapshot) Lookup(uris []string) (found []event.PostFact, missing []string) {
	for _, uri := range uris {
		if f, ok := s.facts[uri]; ok {
			found = append(found, f)
		} else {
			missing = append(missing, uri)
		}
	}
	return found, missing
}

// Version identifies the cache state this snapshot was taken from.
func (s *Snapshot) Version() int64 {
	return s.version
}

// Len returns the number of facts in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.facts)
}

// URIs returns all fact URIs in sorted order.
// Sorted so that frontier scans iterate deterministically.
func (s *Snapshot) URIs() []string {
	uris := make([]string, 0, len(s.facts))
	for uri := range s.facts {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}
