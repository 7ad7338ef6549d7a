package event

import "time"

// Reason is the interaction type discriminant on a notification event.
type Reason string

// Known reasons. Anything else is rejected by Normalize.
const (
	ReasonLike    Reason = "like"
	ReasonRepost  Reason = "repost"
	ReasonFollow  Reason = "follow"
	ReasonQuote   Reason = "quote"
	ReasonReply   Reason = "reply"
	ReasonMention Reason = "mention"
)

// KnownReason reports whether r is one of the recognized variants.
func KnownReason(r Reason) bool {
	switch r {
	case ReasonLike, ReasonRepost, ReasonFollow, ReasonQuote, ReasonReply, ReasonMention:
		return true
	}
	return false
}

// Aggregable reports whether events with this reason may be collapsed
// into a display cluster. Replies and mentions are always singleton.
func (r Reason) Aggregable() bool {
	switch r {
	case ReasonLike, ReasonRepost, ReasonFollow, ReasonQuote:
		return true
	}
	return false
}

// Actor identifies who performed an interaction.
type Actor struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

// NotificationEvent is a single normalized interaction.
//
// Identity is the URI. IndexedAt is the authoritative ordering key;
// it is trusted as reported, with no attempt to repair clock skew
// across federated origins.
type NotificationEvent struct {
	Reason     Reason    `json:"reason"`
	Actor      Actor     `json:"actor"`
	URI        string    `json:"uri"`
	SubjectURI string    `json:"subject_uri,omitempty"`
	IndexedAt  time.Time `json:"indexed_at"`
	IsRead     bool      `json:"is_read"`
}

// PostFact is a cached ancestry record for a post.
//
// Facts arrive lazily from batched fetches and may be partial: a fact
// can declare a parent without a root, a root without a parent, or
// neither. The zero ParentURI/RootURI means "not declared", never
// "declared empty".
type PostFact struct {
	URI       string `json:"uri"`
	ParentURI string `json:"parent_uri,omitempty"`
	RootURI   string `json:"root_uri,omitempty"`
	Content   string `json:"content,omitempty"`
}

// RawEvent is an unvalidated record as received from the event source.
// All fields are optional at this stage; Normalize decides what survives.
type RawEvent struct {
	Reason     string `json:"reason"`
	URI        string `json:"uri"`
	SubjectURI string `json:"subject_uri,omitempty"`
	IndexedAt  string `json:"indexed_at"`
	IsRead     bool   `json:"is_read"`
	Actor      struct {
		ID          string `json:"id"`
		Handle      string `json:"handle"`
		DisplayName string `json:"display_name,omitempty"`
		AvatarRef   string `json:"avatar_ref,omitempty"`
	} `json:"actor"`
}
