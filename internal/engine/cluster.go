package engine

import (
	"sort"
	"time"

	"github.com/dmoskov/shadowsky/internal/event"
)

// AggregationWindow is the maximum gap between consecutive members of a
// cluster. Two bursts of likes three days apart on the same post must
// not merge, so the window applies along the sorted chain, not across
// the whole group.
const AggregationWindow = 24 * time.Hour

// Minimum chain lengths below which events stay singleton.
const (
	FollowThreshold  = 2
	DefaultThreshold = 3
)

// FollowKey is the single grouping key shared by all follow events.
const FollowKey = "follow-all"

// noSubjectSentinel keys aggregable events that carry no subject.
// They group with each other per reason, never with subject-keyed events.
const noSubjectSentinel = "(no-subject)"

// AggregatedCluster is a display cluster of same-key events.
//
// Members are time-descending and consecutive members are within
// AggregationWindow of each other. Actors is the de-duplicated actor
// set across members (by actor ID), in first-seen order.
type AggregatedCluster struct {
	Reason          event.Reason              `json:"reason"`
	TargetKey       string                    `json:"target_key"`
	Members         []event.NotificationEvent `json:"members"`
	LatestTimestamp time.Time                 `json:"latest_timestamp"`
	Actors          []event.Actor             `json:"actors"`
}

// UnreadCount returns how many members are unread.
func (c *AggregatedCluster) UnreadCount() int {
	n := 0
	for _, m := range c.Members {
		if !m.IsRead {
			n++
		}
	}
	return n
}

// FeedItem is one entry in the aggregated feed: either a cluster or a
// singleton event, never both.
type FeedItem struct {
	Cluster *AggregatedCluster       `json:"cluster,omitempty"`
	Event   *event.NotificationEvent `json:"event,omitempty"`
}

// EffectiveTime is the ordering key for the merged feed: a cluster's
// latest member timestamp, a singleton's own timestamp.
func (it FeedItem) EffectiveTime() time.Time {
	if it.Cluster != nil {
		return it.Cluster.LatestTimestamp
	}
	return it.Event.IndexedAt
}

// tieKey breaks ordering ties between items with identical effective
// timestamps. Clusters key on target key plus their newest member URI,
// singletons on their own URI. Comparing by URI instead of relying on
// sort stability keeps repeated runs byte-identical.
func (it FeedItem) tieKey() string {
	if it.Cluster != nil {
		if len(it.Cluster.Members) > 0 {
			return it.Cluster.TargetKey + "\x00" + it.Cluster.Members[0].URI
		}
		return it.Cluster.TargetKey
	}
	return it.Event.URI
}

// groupKey computes the aggregation key for an aggregable event.
// Follows all share one key; everything else keys on reason + subject,
// with a sentinel for events that have no subject.
func groupKey(e event.NotificationEvent) string {
	if e.Reason == event.ReasonFollow {
		return FollowKey
	}
	subject := e.SubjectURI
	if subject == "" {
		subject = noSubjectSentinel
	}
	return string(e.Reason) + ":" + subject
}

// threshold returns the minimum chain length required to aggregate.
func threshold(r event.Reason) int {
	if r == event.ReasonFollow {
		return FollowThreshold
	}
	return DefaultThreshold
}

// ProcessAggregation collapses aggregable events into time-windowed
// clusters and merges them with the remaining singletons into one feed,
// descending by effective timestamp.
//
// Replies and mentions are always singleton. Aggregable events are
// grouped by key, sorted time-descending, split into chains wherever
// the gap between consecutive events exceeds AggregationWindow, and a
// chain becomes a cluster only when it meets its reason's threshold;
// shorter chains fall back to singletons.
//
// Pure: repeated calls over the same event set produce identical output.
func ProcessAggregation(events []event.NotificationEvent) []FeedItem {
	groups := make(map[string][]event.NotificationEvent)
	var keyOrder []string

	var items []FeedItem
	for _, e := range events {
		if !e.Reason.Aggregable() {
			ev := e
			items = append(items, FeedItem{Event: &ev})
			continue
		}
		key := groupKey(e)
		if _, ok := groups[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], e)
	}

	for _, key := range keyOrder {
		group := groups[key]
		sortEventsDesc(group)

		for _, chain := range splitChains(group) {
			if len(chain) < threshold(chain[0].Reason) {
				for _, e := range chain {
					ev := e
					items = append(items, FeedItem{Event: &ev})
				}
				continue
			}
			items = append(items, FeedItem{Cluster: buildCluster(key, chain)})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].EffectiveTime(), items[j].EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return items[i].tieKey() < items[j].tieKey()
	})

	return items
}

// sortEventsDesc sorts events newest-first, ties broken by URI.
func sortEventsDesc(events []event.NotificationEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].IndexedAt.Equal(events[j].IndexedAt) {
			return events[i].IndexedAt.After(events[j].IndexedAt)
		}
		return events[i].URI < events[j].URI
	})
}

// splitChains scans a time-descending group and starts a new chain
// whenever the gap to the previous event exceeds AggregationWindow.
func splitChains(group []event.NotificationEvent) [][]event.NotificationEvent {
	var chains [][]event.NotificationEvent
	var current []event.NotificationEvent

	for i, e := range group {
		if i > 0 {
			gap := group[i-1].IndexedAt.Sub(e.IndexedAt)
			if gap > AggregationWindow {
				chains = append(chains, current)
				current = nil
			}
		}
		current = append(current, e)
	}
	if len(current) > 0 {
		chains = append(chains, current)
	}
	return chains
}

// buildCluster assembles a cluster from a qualifying chain.
// The chain is already time-descending, so the first member carries
// the latest timestamp.
func buildCluster(key string, chain []event.NotificationEvent) *AggregatedCluster {
	members := make([]event.NotificationEvent, len(chain))
	copy(members, chain)

	seen := make(map[string]bool, len(chain))
	var actors []event.Actor
	for _, m := range members {
		if seen[m.Actor.ID] {
			continue
		}
		seen[m.Actor.ID] = true
		actors = append(actors, m.Actor)
	}

	return &AggregatedCluster{
		Reason:          members[0].Reason,
		TargetKey:       key,
		Members:         members,
		LatestTimestamp: members[0].IndexedAt,
		Actors:          actors,
	}
}
