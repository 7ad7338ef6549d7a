package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmoskov/shadowsky/internal/event"
)

// =============================================================================
// Merge
// =============================================================================

func TestStore_MergeAddsFacts(t *testing.T) {
	s := NewStore()

	changed := s.Merge([]event.PostFact{
		{URI: "p1", Content: "root"},
		{URI: "r1", ParentURI: "p1", RootURI: "p1"},
	})

	assert.Equal(t, 2, changed)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, int64(1), s.Version())
}

func TestStore_MergeNeverDowngradesAncestry(t *testing.T) {
	s := NewStore()
	s.Merge([]event.PostFact{{URI: "r1", ParentURI: "p1", RootURI: "p0", Content: "hi"}})

	// A partial re-fetch with blank ancestry must not regress the fact.
	changed := s.Merge([]event.PostFact{{URI: "r1"}})
	assert.Equal(t, 0, changed)
	assert.Equal(t, int64(1), s.Version(), "no-op merge does not bump the version")

	f, ok := s.Snapshot().Get("r1")
	require.True(t, ok)
	assert.Equal(t, "p1", f.ParentURI)
	assert.Equal(t, "p0", f.RootURI)
	assert.Equal(t, "hi", f.Content)
}

func TestStore_MergeUpgradesEmptyFields(t *testing.T) {
	s := NewStore()
	s.Merge([]event.PostFact{{URI: "r1", ParentURI: "p1"}})

	changed := s.Merge([]event.PostFact{{URI: "r1", RootURI: "p0", Content: "late"}})
	assert.Equal(t, 1, changed)

	f, _ := s.Snapshot().Get("r1")
	assert.Equal(t, "p1", f.ParentURI, "existing field untouched")
	assert.Equal(t, "p0", f.RootURI, "empty field filled in")
	assert.Equal(t, "late", f.Content)
}

func TestStore_MergeKeepsFirstValueOnConflict(t *testing.T) {
	s := NewStore()
	s.Merge([]event.PostFact{{URI: "r1", ParentURI: "p1"}})

	s.Merge([]event.PostFact{{URI: "r1", ParentURI: "p2"}})

	f, _ := s.Snapshot().Get("r1")
	assert.Equal(t, "p1", f.ParentURI, "a populated field never changes")
}

func TestStore_MergeIgnoresEmptyURI(t *testing.T) {
	s := NewStore()
	changed := s.Merge([]event.PostFact{{Content: "no uri"}})
	assert.Equal(t, 0, changed)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.Version())
}

func TestStore_VersionBumpsOncePerChangingMerge(t *testing.T) {
	s := NewStore()

	s.Merge([]event.PostFact{{URI: "a"}, {URI: "b"}, {URI: "c"}})
	assert.Equal(t, int64(1), s.Version(), "one bump per batch, not per fact")

	s.Merge([]event.PostFact{{URI: "a"}, {URI: "b"}})
	assert.Equal(t, int64(1), s.Version())

	s.Merge([]event.PostFact{{URI: "d"}})
	assert.Equal(t, int64(2), s.Version())
}

// =============================================================================
// Lookup
// =============================================================================

func TestStore_LookupPartitionsFoundAndMissing(t *testing.T) {
	s := NewStore()
	s.Merge([]event.PostFact{{URI: "a"}, {URI: "c"}})

	found, missing := s.Lookup([]string{"a", "b", "c", "d"})

	require.Len(t, found, 2)
	assert.Equal(t, "a", found[0].URI)
	assert.Equal(t, "c", found[1].URI)
	assert.Equal(t, []string{"b", "d"}, missing)
}

// =============================================================================
// Snapshot
// =============================================================================

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.Merge([]event.PostFact{{URI: "a"}})

	snap := s.Snapshot()
	s.Merge([]event.PostFact{{URI: "b"}})

	assert.Equal(t, 1, snap.Len(), "later merges do not show through")
	_, ok := snap.Get("b")
	assert.False(t, ok)
	assert.Equal(t, int64(1), snap.Version())
	assert.Equal(t, int64(2), s.Version())
}

func TestSnapshot_URIsSorted(t *testing.T) {
	snap := NewSnapshot([]event.PostFact{{URI: "c"}, {URI: "a"}, {URI: "b"}}, 1)
	assert.Equal(t, []string{"a", "b", "c"}, snap.URIs())
}

func TestNewSnapshot_SkipsFactsWithoutURI(t *testing.T) {
	snap := NewSnapshot([]event.PostFact{{URI: "a"}, {Content: "stray"}}, 7)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, int64(7), snap.Version())
}
