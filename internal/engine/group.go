package engine

import (
	"sort"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/event"
)

// ConversationThread is the set of reply events that resolve to one root,
// with aggregate display statistics.
//
// Threads are derived, not authoritative: every recomputation rebuilds
// them from scratch against the current snapshot, so membership always
// reflects the best currently-known ancestry. RootPost is attached
// opportunistically when the root's fact is cached.
type ConversationThread struct {
	RootURI      string                    `json:"root_uri"`
	RootPost     *event.PostFact           `json:"root_post,omitempty"`
	Replies      []event.NotificationEvent `json:"replies"`
	Participants []string                  `json:"participants"`
	LatestReply  event.NotificationEvent   `json:"latest_reply"`
	TotalReplies int                       `json:"total_replies"`
}

// BuildConversations buckets reply events under their resolved root and
// returns the threads descending by latest reply.
//
// Non-reply events are ignored; callers may pass a mixed event set.
// Within a thread, replies are time-descending with ties broken by URI.
// Participants is the de-duplicated handle set in first-seen order over
// the time-descending replies.
//
// Pure: the same reply set and the same snapshot always produce
// identical threads.
func BuildConversations(replies []event.NotificationEvent, snap *cache.Snapshot) []ConversationThread {
	return buildConversations(replies, snap, NewResolver())
}

// buildConversations is the shared implementation; the engine facade
// passes its memoizing resolver, the package function a fresh one.
func buildConversations(replies []event.NotificationEvent, snap *cache.Snapshot, resolver *Resolver) []ConversationThread {
	byRoot := make(map[string][]event.NotificationEvent)
	var rootOrder []string

	for _, e := range replies {
		if e.Reason != event.ReasonReply {
			continue
		}
		root := resolver.Resolve(e, snap)
		if _, ok := byRoot[root]; !ok {
			rootOrder = append(rootOrder, root)
		}
		byRoot[root] = append(byRoot[root], e)
	}

	threads := make([]ConversationThread, 0, len(rootOrder))
	for _, root := range rootOrder {
		members := byRoot[root]
		sortEventsDesc(members)

		seen := make(map[string]bool, len(members))
		var participants []string
		for _, m := range members {
			if m.Actor.Handle == "" || seen[m.Actor.Handle] {
				continue
			}
			seen[m.Actor.Handle] = true
			participants = append(participants, m.Actor.Handle)
		}

		thread := ConversationThread{
			RootURI:      root,
			Replies:      members,
			Participants: participants,
			LatestReply:  members[0],
			TotalReplies: len(members),
		}
		if fact, ok := snap.Get(root); ok {
			f := fact
			thread.RootPost = &f
		}
		threads = append(threads, thread)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		ti, tj := threads[i].LatestReply.IndexedAt, threads[j].LatestReply.IndexedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return threads[i].RootURI < threads[j].RootURI
	})

	return threads
}
