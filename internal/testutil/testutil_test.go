package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmoskov/shadowsky/internal/event"
)

func TestFixedTokens(t *testing.T) {
	gen := NewFixedTokens("batch-1", "batch-2")

	assert.Equal(t, 2, gen.Remaining())
	assert.Equal(t, "batch-1", gen.Generate())
	assert.Equal(t, "batch-2", gen.Generate())
	assert.Equal(t, 0, gen.Remaining())

	assert.Panics(t, func() { gen.Generate() })
}

func TestAt_PanicsOnBadTimestamp(t *testing.T) {
	assert.Panics(t, func() { At("last tuesday") })
	assert.Equal(t, "2026-01-05T09:00:00Z", At("2026-01-05T09:00:00Z").Format("2006-01-02T15:04:05Z07:00"))
}

func TestEv_DerivesActorFromHandle(t *testing.T) {
	e := Ev(event.ReasonLike, "e1", "p1", "alice", "2026-01-05T09:00:00Z")
	assert.Equal(t, "did:alice", e.Actor.ID)
	assert.Equal(t, "alice", e.Actor.Handle)
	assert.Equal(t, "p1", e.SubjectURI)
}
