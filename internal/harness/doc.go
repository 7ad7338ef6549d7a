// Package harness provides scenario-driven conformance testing for the
// notification engine.
//
// The harness loads YAML scenarios, feeds their events and post facts
// through the real ingestion, aggregation, resolution, and enrichment
// paths, and validates the derived views with typed assertions. Every
// run also produces a deterministic text trace for golden comparison.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	events:
//	  - reason: like
//	    uri: e1
//	    subject: p1
//	    handle: alice
//	    at: 2026-01-05T09:00:00Z
//	posts:
//	  - uri: p2
//	    parent: p1
//	    root: p1
//	flow:
//	  - op: aggregate
//	  - op: merge
//	  - op: enrich
//	  - op: conversations
//	  - op: frontier
//	assertions:
//	  - type: feed_count
//	    count: 4
//	  - type: cluster
//	    target_key: "like:p1"
//	    size: 3
//
// # Flow Operations
//
//   - aggregate: build the clustered feed from the scenario events
//   - merge: merge the scenario posts into the cache wholesale
//   - enrich: resolve ancestry through the enrichment coordinator,
//     with the scenario posts acting as the fetchable universe
//   - conversations: reconstruct threads against the current cache
//   - frontier: compute the unresolved ancestor set
//
// # Assertion Types
//
//   - feed_count: the feed has exactly N items
//   - cluster: a cluster with the given target key and size exists
//   - singleton_count: the feed has exactly N singleton items
//   - thread_count: exactly N threads were reconstructed
//   - thread: a thread with the given root exists, optionally with an
//     exact reply count and participant list
//   - frontier_contains: the frontier includes the given URI
//   - frontier_empty: the frontier is empty
//
// # Deterministic Tracing
//
// All transforms are pure over immutable snapshots and break ordering
// ties by URI, so a scenario's trace is byte-identical across runs.
// Golden files live in testdata/golden and regenerate with:
//
//	go test ./internal/harness -update
package harness
