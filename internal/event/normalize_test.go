package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRecord(reason, uri, at string) RawEvent {
	var raw RawEvent
	raw.Reason = reason
	raw.URI = uri
	raw.IndexedAt = at
	raw.Actor.ID = "did:alice"
	raw.Actor.Handle = "alice"
	return raw
}

func TestNormalize_AcceptsKnownReasons(t *testing.T) {
	raws := []RawEvent{
		rawRecord("like", "e1", "2026-01-05T09:00:00Z"),
		rawRecord("repost", "e2", "2026-01-05T09:01:00Z"),
		rawRecord("follow", "e3", "2026-01-05T09:02:00Z"),
		rawRecord("quote", "e4", "2026-01-05T09:03:00Z"),
		rawRecord("reply", "e5", "2026-01-05T09:04:00Z"),
		rawRecord("mention", "e6", "2026-01-05T09:05:00Z"),
	}

	res := Normalize(raws)
	require.Len(t, res.Events, 6)
	assert.Empty(t, res.ListOnly)
	assert.Empty(t, res.Dropped)

	for i, e := range res.Events {
		assert.Equal(t, raws[i].URI, e.URI, "input order preserved")
		assert.False(t, e.IndexedAt.IsZero())
	}
}

func TestNormalize_DropsMissingURI(t *testing.T) {
	res := Normalize([]RawEvent{rawRecord("like", "", "2026-01-05T09:00:00Z")})
	assert.Empty(t, res.Events)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, DropMissingURI, res.Dropped[0].Code)
}

func TestNormalize_DropsMissingReason(t *testing.T) {
	res := Normalize([]RawEvent{rawRecord("", "e1", "2026-01-05T09:00:00Z")})
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, DropMissingReason, res.Dropped[0].Code)
	assert.Equal(t, "e1", res.Dropped[0].URI)
}

func TestNormalize_DropsUnknownReason(t *testing.T) {
	res := Normalize([]RawEvent{rawRecord("starterpack-joined", "e1", "2026-01-05T09:00:00Z")})
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, DropUnknownReason, res.Dropped[0].Code)
	assert.Equal(t, "starterpack-joined", res.Dropped[0].Reason)
}

func TestNormalize_DropsMissingTimestamp(t *testing.T) {
	res := Normalize([]RawEvent{rawRecord("like", "e1", "")})
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, DropMissingTimestamp, res.Dropped[0].Code)
}

func TestNormalize_UnparsableTimestampIsListOnly(t *testing.T) {
	res := Normalize([]RawEvent{
		rawRecord("like", "e1", "yesterday-ish"),
		rawRecord("like", "e2", "2026-01-05T09:00:00Z"),
	})

	require.Len(t, res.Events, 1)
	assert.Equal(t, "e2", res.Events[0].URI)

	require.Len(t, res.ListOnly, 1, "bad timestamp keeps the record for plain listing")
	assert.Equal(t, "e1", res.ListOnly[0].URI)
	assert.True(t, res.ListOnly[0].IndexedAt.IsZero())
	assert.Empty(t, res.Dropped)
}

func TestNormalize_TimestampsNormalizedToUTC(t *testing.T) {
	res := Normalize([]RawEvent{rawRecord("like", "e1", "2026-01-05T10:00:00+01:00")})
	require.Len(t, res.Events, 1)
	assert.Equal(t, "2026-01-05T09:00:00Z", res.Events[0].IndexedAt.Format("2006-01-02T15:04:05Z07:00"))
}

func TestNormalize_NFCNormalizesActorText(t *testing.T) {
	raw := rawRecord("like", "e1", "2026-01-05T09:00:00Z")
	// "é" as 'e' + COMBINING ACUTE ACCENT must become the precomposed form.
	raw.Actor.Handle = "re\u0301sume\u0301"
	raw.Actor.DisplayName = "Re\u0301sume\u0301"

	res := Normalize([]RawEvent{raw})
	require.Len(t, res.Events, 1)
	assert.Equal(t, "r\u00e9sum\u00e9", res.Events[0].Actor.Handle)
	assert.Equal(t, "R\u00e9sum\u00e9", res.Events[0].Actor.DisplayName)
}

func TestNormalize_SubjectAndReadStateCarryThrough(t *testing.T) {
	raw := rawRecord("like", "e1", "2026-01-05T09:00:00Z")
	raw.SubjectURI = "p1"
	raw.IsRead = true

	res := Normalize([]RawEvent{raw})
	require.Len(t, res.Events, 1)
	assert.Equal(t, "p1", res.Events[0].SubjectURI)
	assert.True(t, res.Events[0].IsRead)
}

func TestNormalize_MixedBatchPartitionsPerRecord(t *testing.T) {
	res := Normalize([]RawEvent{
		rawRecord("like", "e1", "2026-01-05T09:00:00Z"),
		rawRecord("like", "", "2026-01-05T09:00:00Z"),
		rawRecord("like", "e3", "not-a-time"),
		rawRecord("bogus", "e4", "2026-01-05T09:00:00Z"),
	})

	assert.Len(t, res.Events, 1)
	assert.Len(t, res.ListOnly, 1)
	assert.Len(t, res.Dropped, 2)
}
