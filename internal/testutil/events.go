package testutil

import (
	"fmt"
	"time"

	"github.com/dmoskov/shadowsky/internal/event"
)

// At parses an RFC 3339 timestamp, panicking on error.
// Test fixtures carry literal timestamps; a typo should fail loudly.
func At(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(fmt.Sprintf("testutil.At(%q): %v", s, err))
	}
	return t.UTC()
}

// Ev builds a normalized notification event.
// The actor is derived from the handle: id "did:<handle>".
func Ev(reason event.Reason, uri, subject, handle, at string) event.NotificationEvent {
	return event.NotificationEvent{
		Reason:     reason,
		URI:        uri,
		SubjectURI: subject,
		IndexedAt:  At(at),
		Actor: event.Actor{
			ID:     "did:" + handle,
			Handle: handle,
		},
	}
}

// Like builds a like event on a subject.
func Like(uri, subject, handle, at string) event.NotificationEvent {
	return Ev(event.ReasonLike, uri, subject, handle, at)
}

// Reply builds a reply event on a subject.
func Reply(uri, subject, handle, at string) event.NotificationEvent {
	return Ev(event.ReasonReply, uri, subject, handle, at)
}

// Follow builds a follow event (no subject).
func Follow(uri, handle, at string) event.NotificationEvent {
	return Ev(event.ReasonFollow, uri, "", handle, at)
}

// Post builds a post fact.
func Post(uri, parent, root string) event.PostFact {
	return event.PostFact{URI: uri, ParentURI: parent, RootURI: root}
}

// Raw builds a raw event record for normalizer tests.
func Raw(reason, uri, subject, handle, at string) event.RawEvent {
	var raw event.RawEvent
	raw.Reason = reason
	raw.URI = uri
	raw.SubjectURI = subject
	raw.IndexedAt = at
	raw.Actor.ID = "did:" + handle
	raw.Actor.Handle = handle
	return raw
}
