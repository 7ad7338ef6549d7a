// Package event defines the normalized notification event model.
//
// Raw records arriving from the paginated event source are heterogeneous
// and only loosely validated upstream. This package owns the boundary
// where they become typed: Normalize tags each record with its Reason
// discriminant, parses timestamps, NFC-normalizes actor text, and sorts
// records into three buckets:
//
//   - Events: fully normalized, usable for clustering and threading
//   - ListOnly: valid identity but unparsable timestamp; shown in plain
//     listings, never clustered or threaded
//   - Dropped: missing uri, reason, or indexed_at; recorded as a
//     data-quality signal and discarded
//
// Everything downstream of Normalize treats events as immutable values
// keyed by URI. PostFact is the partially-available ancestry record the
// resolver and grouper consult; a fact may be absent entirely (unknown),
// or present with only some of parent/root declared.
package event
