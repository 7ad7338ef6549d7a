package engine

import (
	"sync"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/event"
)

// MaxAncestryDepth bounds the parent walk for degenerate chains.
// A well-formed thread is rarely more than a few dozen posts deep;
// hitting the quota returns the last URI reached as a best-effort root.
const MaxAncestryDepth = 128

// ResolveRoot computes the URI of a reply event's conversation root,
// using only what the given snapshot knows. It always terminates and
// always returns a URI, whatever the state of the cached ancestry.
//
// Resolution order, strongest signal first:
//
//  1. A cached fact for the event that declares a root wins outright.
//  2. Otherwise the parent chain is walked through cached facts,
//     carrying a visited set. A revisited URI (corrupt cycle) is
//     returned immediately. The walk stops at the first fact that
//     declares a root, and otherwise at the deepest cached ancestor.
//  3. With no cached fact for the event, a declared subject is a
//     stable provisional root; the walk is never attempted without data.
//  4. Failing all of the above the event is its own orphan root.
func ResolveRoot(e event.NotificationEvent, snap *cache.Snapshot) string {
	fact, ok := snap.Get(e.URI)
	if !ok {
		if e.SubjectURI != "" {
			return e.SubjectURI
		}
		return e.URI
	}

	if fact.RootURI != "" {
		return fact.RootURI
	}

	if fact.ParentURI != "" {
		if _, parentCached := snap.Get(fact.ParentURI); parentCached {
			visited := map[string]bool{e.URI: true}
			return walkAncestry(fact.ParentURI, snap, visited, 0)
		}
	}

	// A fact is cached but declares nothing walkable. The fact itself is
	// the strongest identity we have; the frontier will fetch the rest.
	return e.URI
}

// walkAncestry follows parent links through cached facts.
//
// Returns the revisited URI on a cycle, the declared root of the first
// fact that has one, and otherwise the deepest cached ancestor reached.
// Never steps onto a URI whose fact is not cached.
func walkAncestry(uri string, snap *cache.Snapshot, visited map[string]bool, depth int) string {
	if visited[uri] {
		return uri
	}
	if depth >= MaxAncestryDepth {
		return uri
	}
	visited[uri] = true

	fact, ok := snap.Get(uri)
	if !ok {
		return uri
	}
	if fact.RootURI != "" {
		return fact.RootURI
	}
	if fact.ParentURI != "" {
		if visited[fact.ParentURI] {
			return fact.ParentURI
		}
		if _, parentCached := snap.Get(fact.ParentURI); parentCached {
			return walkAncestry(fact.ParentURI, snap, visited, depth+1)
		}
	}
	return uri
}

// resolveKey memoizes resolution per (event identity, snapshot version).
type resolveKey struct {
	uri     string
	subject string
	version int64
}

// Resolver memoizes ResolveRoot across recomputation passes.
//
// Memo entries are keyed on the snapshot version, so merging new facts
// (which bumps the version) naturally invalidates every prior answer
// and lets resolution improve monotonically. Entries for old versions
// are evicted when a newer version is first seen.
//
// Safe for concurrent use: the memo sits behind one engine instance
// that serves overlapping view requests.
type Resolver struct {
	mu          sync.Mutex
	memo        map[resolveKey]string
	memoVersion int64
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{memo: make(map[resolveKey]string)}
}

// Resolve returns the root for an event, computing it at most once per
// snapshot version.
func (r *Resolver) Resolve(e event.NotificationEvent, snap *cache.Snapshot) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.Version() != r.memoVersion {
		r.memo = make(map[resolveKey]string)
		r.memoVersion = snap.Version()
	}

	key := resolveKey{uri: e.URI, subject: e.SubjectURI, version: snap.Version()}
	if root, ok := r.memo[key]; ok {
		return root
	}
	root := ResolveRoot(e, snap)
	r.memo[key] = root
	return root
}

// MemoSize returns the number of memoized answers.
// Used for testing and introspection.
func (r *Resolver) MemoSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memo)
}
