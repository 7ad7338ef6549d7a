package engine

import (
	"log/slog"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/event"
)

// Engine is the facade over the pure transforms, holding the one piece
// of cross-pass state worth keeping: the root-resolution memo.
//
// All methods compute against the snapshot passed in; the engine never
// reaches for ambient state and never performs I/O. Callers that want
// fully stateless computation can use the package-level functions
// directly, the facade only adds memoization and lifecycle logging.
//
// Safe for concurrent use: the transforms are pure and the resolver
// guards its memo, so one engine can serve overlapping view requests.
type Engine struct {
	resolver *Resolver
}

// New creates an engine with an empty resolution memo.
func New() *Engine {
	return &Engine{resolver: NewResolver()}
}

// ProcessAggregation builds the clustered feed. See the package-level
// function for the algorithm.
func (e *Engine) ProcessAggregation(events []event.NotificationEvent) []FeedItem {
	items := ProcessAggregation(events)
	slog.Debug("aggregation pass complete",
		"events", len(events),
		"items", len(items),
	)
	return items
}

// BuildConversations reconstructs conversation threads, reusing the
// engine's memoized resolver across passes over the same snapshot
// version.
func (e *Engine) BuildConversations(replies []event.NotificationEvent, snap *cache.Snapshot) []ConversationThread {
	threads := buildConversations(replies, snap, e.resolver)
	slog.Debug("conversation pass complete",
		"replies", len(replies),
		"threads", len(threads),
		"cache_version", snap.Version(),
	)
	return threads
}

// Frontier returns the ancestor URIs worth fetching next.
func (e *Engine) Frontier(replies []event.NotificationEvent, snap *cache.Snapshot) []string {
	return Frontier(replies, snap)
}

// Stats summarizes an event set for unread badges and data-quality
// reporting.
type Stats struct {
	Total     int                  `json:"total"`
	Unread    int                  `json:"unread"`
	ByReason  map[event.Reason]int `json:"by_reason"`
	ListOnly  int                  `json:"list_only"`
	Dropped   int                  `json:"dropped"`
	CacheSize int                  `json:"cache_size"`
}

// ComputeStats derives summary counts from a normalization result and
// the current snapshot.
func ComputeStats(res event.Result, snap *cache.Snapshot) Stats {
	stats := Stats{
		Total:    len(res.Events),
		ByReason: make(map[event.Reason]int),
		ListOnly: len(res.ListOnly),
		Dropped:  len(res.Dropped),
	}
	if snap != nil {
		stats.CacheSize = snap.Len()
	}
	for _, e := range res.Events {
		stats.ByReason[e.Reason]++
		if !e.IsRead {
			stats.Unread++
		}
	}
	return stats
}
