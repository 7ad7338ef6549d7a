// Package testutil provides deterministic helpers for tests.
package testutil

import "sync"

// FixedTokens returns predetermined batch tokens in order.
//
// This keeps enrichment log and error output deterministic so tests
// can assert on exact batch correlation.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a generator that returns tokens in order.
//
// Example:
//
//	gen := NewFixedTokens("batch-1", "batch-2")
//	gen.Generate() // "batch-1"
//	gen.Generate() // "batch-2"
//	gen.Generate() // panic: all tokens exhausted
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics when all tokens are consumed. Fail-fast: the test issued more
// batches than it declared, which is itself a finding.
func (g *FixedTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedTokens: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// Remaining returns how many tokens are left.
func (g *FixedTokens) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tokens) - g.idx
}
