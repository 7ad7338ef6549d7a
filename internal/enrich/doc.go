// Package enrich keeps the post-fact cache supplied with the ancestry
// the engine needs.
//
// The Coordinator tracks every frontier URI through a small state
// machine (unknown -> requested -> resolved | failed), chunks pending
// URIs into bounded batches, and fetches them through the external
// Fetcher collaborator. All I/O failure in the system is confined to
// this boundary: a failed batch marks its URIs failed and the derived
// views simply form around whatever ancestry is available.
//
// Failed URIs stay failed for the session. Ancestors that are deleted
// or unavailable would otherwise be re-requested on every recomputation
// pass, and a retry storm against them buys nothing.
package enrich
