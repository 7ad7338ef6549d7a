package event

import (
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DropCode categorizes why a raw record was rejected.
type DropCode string

const (
	// DropMissingURI means the record has no uri and therefore no identity.
	DropMissingURI DropCode = "MISSING_URI"

	// DropMissingReason means the record has no reason discriminant.
	DropMissingReason DropCode = "MISSING_REASON"

	// DropUnknownReason means the reason is not a recognized variant.
	DropUnknownReason DropCode = "UNKNOWN_REASON"

	// DropMissingTimestamp means the record has no indexed_at at all.
	DropMissingTimestamp DropCode = "MISSING_TIMESTAMP"
)

// DroppedRecord describes a rejected raw record for data-quality reporting.
type DroppedRecord struct {
	URI    string   `json:"uri,omitempty"`
	Reason string   `json:"reason,omitempty"`
	Code   DropCode `json:"code"`
}

// Result is the outcome of normalizing a batch of raw records.
//
// Events carry a parsed timestamp and participate in clustering and
// threading. ListOnly records have a present but unparsable indexed_at;
// they keep their identity for plain listings but are excluded from the
// derived views (their IndexedAt is the zero time). Dropped records had
// no usable identity or discriminant.
type Result struct {
	Events   []NotificationEvent `json:"events"`
	ListOnly []NotificationEvent `json:"list_only,omitempty"`
	Dropped  []DroppedRecord     `json:"dropped,omitempty"`
}

// Normalize validates and tags raw records into the internal representation.
//
// Rejection is per record, never fatal: a bad record is reported in
// Dropped and the rest of the batch proceeds. Input order is preserved
// within each bucket.
//
// Actor handle and display name are NFC-normalized here, at the boundary.
// Federated input is arbitrary Unicode and the same handle can arrive in
// different decompositions; everything downstream compares normalized form.
func Normalize(raws []RawEvent) Result {
	var res Result

	for _, raw := range raws {
		if raw.URI == "" {
			res.Dropped = append(res.Dropped, DroppedRecord{Reason: raw.Reason, Code: DropMissingURI})
			continue
		}
		if raw.Reason == "" {
			res.Dropped = append(res.Dropped, DroppedRecord{URI: raw.URI, Code: DropMissingReason})
			continue
		}
		reason := Reason(raw.Reason)
		if !KnownReason(reason) {
			res.Dropped = append(res.Dropped, DroppedRecord{URI: raw.URI, Reason: raw.Reason, Code: DropUnknownReason})
			continue
		}
		if raw.IndexedAt == "" {
			res.Dropped = append(res.Dropped, DroppedRecord{URI: raw.URI, Reason: raw.Reason, Code: DropMissingTimestamp})
			continue
		}

		ev := NotificationEvent{
			Reason:     reason,
			URI:        raw.URI,
			SubjectURI: raw.SubjectURI,
			IsRead:     raw.IsRead,
			Actor: Actor{
				ID:          raw.Actor.ID,
				Handle:      norm.NFC.String(raw.Actor.Handle),
				DisplayName: norm.NFC.String(raw.Actor.DisplayName),
				AvatarRef:   raw.Actor.AvatarRef,
			},
		}

		ts, err := time.Parse(time.RFC3339, raw.IndexedAt)
		if err != nil {
			// Present but unparsable: keep for plain listing only.
			slog.Warn("event timestamp unparsable, excluded from derived views",
				"uri", raw.URI,
				"reason", raw.Reason,
				"indexed_at", raw.IndexedAt,
			)
			res.ListOnly = append(res.ListOnly, ev)
			continue
		}
		ev.IndexedAt = ts.UTC()

		res.Events = append(res.Events, ev)
	}

	if len(res.Dropped) > 0 {
		slog.Warn("raw records dropped during normalization",
			"dropped", len(res.Dropped),
			"accepted", len(res.Events),
			"list_only", len(res.ListOnly),
		)
	}

	return res
}
