// Package cache holds the post-fact cache: the only shared mutable
// resource in the engine.
//
// The cache is append-only from the engine's perspective. Facts are
// merged in as batched fetches resolve and are never removed; a merge
// never downgrades known ancestry (a fact that declared a root keeps
// it even if a later copy arrives without one). Every merge that
// changes anything bumps a version counter, and all pure computation
// runs against an immutable Snapshot carrying that version, so resolver
// memoization and determinism tests can key on (input, version).
//
// Two optional backings persist the in-memory store across sessions:
// SQLite for a single embedded client and Redis for deployments where
// several client sessions share one fact cache. Backings warm the store
// at startup and receive write-through saves after merges; the engine
// itself only ever sees the in-memory store.
package cache
