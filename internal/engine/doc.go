// Package engine implements the notification aggregation and
// conversation-thread reconstruction engine.
//
// The engine takes a flat, partially-ordered stream of normalized
// interaction events and produces two derived views:
//
//   - a display feed where bursts of same-type events about the same
//     target collapse into time-windowed clusters (cluster.go)
//   - conversation threads rooted at each reply chain's true ancestor,
//     reconstructed from ancestry facts that arrive lazily and out of
//     order (resolve.go, group.go)
//
// ARCHITECTURE:
//
// Pure Transforms Over Snapshots:
// Every computation runs synchronously over an immutable value set: the
// event slice and a cache.Snapshot. Nothing here performs I/O; the only
// state a pass touches is the resolver's memo, which sits behind its
// own mutex so one engine can serve concurrent view requests. Derived
// views are recomputed from scratch on every pass - they are
// projections, not mutable entities with lifecycles. Correctness
// (threads reflecting the best currently-known root) takes priority
// over incremental update cost.
//
// Determinism:
// The same event set and the same snapshot always produce byte-identical
// output. Ties on the ordering key are broken by URI, never by map
// iteration order or sort-stability accidents. Root resolution is
// memoized per (event URI, snapshot version); a new snapshot version
// invalidates the memo, and resolution quality only improves as more
// ancestry arrives.
//
// Frontier:
// What the engine cannot resolve it exposes as a frontier of ancestor
// URIs worth fetching (frontier.go). Fetching itself belongs to the
// enrich package; the engine only ever says what is missing.
package engine
