package engine

import (
	"sort"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/event"
)

// Frontier returns the ancestor URIs that are referenced by known data
// but not yet cached, sorted for deterministic fetch order.
//
// Three sources feed the frontier:
//
//   - parent/root references declared by cached facts whose targets are
//     not themselves cached
//   - reply events with no cached fact for their own URI (their ancestry
//     is entirely unknown)
//   - reply subjects that are not cached (the provisional root cannot be
//     improved without the subject's fact)
//
// Pure scan: no request-state filtering happens here. The enrichment
// coordinator subtracts URIs already requested or marked failed.
func Frontier(replies []event.NotificationEvent, snap *cache.Snapshot) []string {
	want := make(map[string]bool)

	for _, uri := range snap.URIs() {
		fact, _ := snap.Get(uri)
		if fact.ParentURI != "" {
			if _, ok := snap.Get(fact.ParentURI); !ok {
				want[fact.ParentURI] = true
			}
		}
		if fact.RootURI != "" {
			if _, ok := snap.Get(fact.RootURI); !ok {
				want[fact.RootURI] = true
			}
		}
	}

	for _, e := range replies {
		if e.Reason != event.ReasonReply {
			continue
		}
		if _, ok := snap.Get(e.URI); !ok {
			want[e.URI] = true
		}
		if e.SubjectURI != "" {
			if _, ok := snap.Get(e.SubjectURI); !ok {
				want[e.SubjectURI] = true
			}
		}
	}

	frontier := make([]string, 0, len(want))
	for uri := range want {
		frontier = append(frontier, uri)
	}
	sort.Strings(frontier)
	return frontier
}
