package ingest

import (
	"sync"

	"github.com/dmoskov/shadowsky/internal/event"
)

// Inbox accumulates normalized events across pages with URI identity.
//
// Pagination overlap is routine: a cursor reset or a re-poll can replay
// records already seen. The inbox keeps the first copy of each URI and
// drops the rest, so a replayed like can never inflate a cluster.
//
// Thread-safety: all methods are safe for concurrent use; the poller
// appends while HTTP handlers read.
type Inbox struct {
	mu       sync.RWMutex
	order    []string
	byURI    map[string]event.NotificationEvent
	listOnly []event.NotificationEvent
	dropped  int
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{byURI: make(map[string]event.NotificationEvent)}
}

// AddPage normalizes a raw page into the inbox and returns how many
// events were new.
func (in *Inbox) AddPage(page Page) int {
	res := event.Normalize(page.Events)
	return in.Add(res)
}

// Add merges a normalization result into the inbox.
func (in *Inbox) Add(res event.Result) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	added := 0
	for _, e := range res.Events {
		if _, seen := in.byURI[e.URI]; seen {
			continue
		}
		in.byURI[e.URI] = e
		in.order = append(in.order, e.URI)
		added++
	}
	in.listOnly = append(in.listOnly, res.ListOnly...)
	in.dropped += len(res.Dropped)
	return added
}

// Events returns all accepted events in arrival order.
func (in *Inbox) Events() []event.NotificationEvent {
	in.mu.RLock()
	defer in.mu.RUnlock()

	events := make([]event.NotificationEvent, 0, len(in.order))
	for _, uri := range in.order {
		events = append(events, in.byURI[uri])
	}
	return events
}

// Replies returns only the reply events, in arrival order.
func (in *Inbox) Replies() []event.NotificationEvent {
	in.mu.RLock()
	defer in.mu.RUnlock()

	var replies []event.NotificationEvent
	for _, uri := range in.order {
		if e := in.byURI[uri]; e.Reason == event.ReasonReply {
			replies = append(replies, e)
		}
	}
	return replies
}

// Result reassembles a normalization-result view of the inbox for
// stats reporting. Dropped records keep only their count.
func (in *Inbox) Result() event.Result {
	in.mu.RLock()
	defer in.mu.RUnlock()

	res := event.Result{
		Events:   make([]event.NotificationEvent, 0, len(in.order)),
		ListOnly: append([]event.NotificationEvent(nil), in.listOnly...),
	}
	for _, uri := range in.order {
		res.Events = append(res.Events, in.byURI[uri])
	}
	if in.dropped > 0 {
		res.Dropped = make([]event.DroppedRecord, in.dropped)
	}
	return res
}

// Len returns the number of accepted events.
func (in *Inbox) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.order)
}
