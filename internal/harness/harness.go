package harness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/enrich"
	"github.com/dmoskov/shadowsky/internal/event"
	"github.com/dmoskov/shadowsky/internal/ingest"
)

// Harness is the scenario execution engine.
//
// Each scenario runs over a fresh inbox, cache, and engine for
// isolation. The scenario's posts act both as the wholesale-merge set
// and as the fetchable universe for the enrichment coordinator, so the
// same fixture exercises both ancestry paths.
type Harness struct {
	inbox  *ingest.Inbox
	store  *cache.Store
	engine *engine.Engine
	posts  []event.PostFact
	coord  *enrich.Coordinator
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Normalize the scenario events through the real ingestion path.
//  2. Execute each flow operation, recording a trace line per record.
//  3. Evaluate the assertions against the computed views.
func Run(scenario *Scenario) (*Result, error) {
	inbox := ingest.NewInbox()
	inbox.AddPage(ingest.Page{Events: rawEvents(scenario.Events)})

	h := &Harness{
		inbox:  inbox,
		store:  cache.NewStore(),
		engine: engine.New(),
		posts:  postFacts(scenario.Posts),
	}

	result := NewResult()
	ctx := context.Background()

	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep runs one flow operation and appends its trace.
func (h *Harness) executeStep(ctx context.Context, step FlowStep, result *Result) error {
	switch step.Op {
	case OpAggregate:
		items := h.engine.ProcessAggregation(h.inbox.Events())
		result.Feed = items
		result.ranAggregate = true
		result.addTrace(fmt.Sprintf("aggregate: %d item(s)", len(items)))
		for _, item := range items {
			result.addTrace(renderFeedItem(item))
		}

	case OpMerge:
		merged := h.store.Merge(h.posts)
		result.addTrace(fmt.Sprintf("merge: %d fact(s) cache=%d v%d",
			merged, h.store.Len(), h.store.Version()))

	case OpEnrich:
		if h.coord == nil {
			opts := []enrich.Option{enrich.WithBatchSize(step.BatchSize)}
			h.coord = enrich.NewCoordinator(h.store, newFactFetcher(h.posts), opts...)
		}
		// Batch failures leave partial ancestry; the views and the
		// state counts still come out deterministic.
		_ = h.coord.Enrich(ctx, h.inbox.Replies())
		counts := h.coord.StateCounts()
		result.addTrace(fmt.Sprintf("enrich: resolved=%d failed=%d cache=%d v%d",
			counts[enrich.StateResolved], counts[enrich.StateFailed],
			h.store.Len(), h.store.Version()))

	case OpConversations:
		threads := h.engine.BuildConversations(h.inbox.Replies(), h.store.Snapshot())
		result.Threads = threads
		result.ranConversations = true
		result.addTrace(fmt.Sprintf("conversations: %d thread(s)", len(threads)))
		for _, t := range threads {
			result.addTrace(renderThread(t))
		}

	case OpFrontier:
		frontier := h.engine.Frontier(h.inbox.Replies(), h.store.Snapshot())
		result.Frontier = frontier
		result.ranFrontier = true
		if len(frontier) == 0 {
			result.addTrace("frontier: none")
		} else {
			result.addTrace("frontier: " + strings.Join(frontier, ", "))
		}

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// renderFeedItem renders one feed entry as a stable trace line.
func renderFeedItem(item engine.FeedItem) string {
	if item.Cluster != nil {
		c := item.Cluster
		handles := make([]string, len(c.Actors))
		for i, a := range c.Actors {
			handles[i] = a.Handle
		}
		return fmt.Sprintf("  cluster %s x%d latest=%s actors=%s",
			c.TargetKey, len(c.Members),
			c.LatestTimestamp.Format(time.RFC3339),
			strings.Join(handles, ","))
	}
	e := item.Event
	return fmt.Sprintf("  event %s %s @%s %s",
		e.Reason, e.URI, e.Actor.Handle, e.IndexedAt.Format(time.RFC3339))
}

// renderThread renders one thread as a stable trace line.
func renderThread(t engine.ConversationThread) string {
	return fmt.Sprintf("  thread %s replies=%d participants=%s latest=%s",
		t.RootURI, t.TotalReplies,
		strings.Join(t.Participants, ","),
		t.LatestReply.IndexedAt.Format(time.RFC3339))
}

// rawEvents converts scenario event specs to raw records.
func rawEvents(specs []EventSpec) []event.RawEvent {
	raws := make([]event.RawEvent, len(specs))
	for i, s := range specs {
		var raw event.RawEvent
		raw.Reason = s.Reason
		raw.URI = s.URI
		raw.SubjectURI = s.Subject
		raw.IndexedAt = s.At
		raw.IsRead = s.Read
		raw.Actor.ID = "did:" + s.Handle
		raw.Actor.Handle = s.Handle
		raws[i] = raw
	}
	return raws
}

// postFacts converts scenario post specs to facts.
func postFacts(specs []PostSpec) []event.PostFact {
	facts := make([]event.PostFact, len(specs))
	for i, s := range specs {
		facts[i] = event.PostFact{
			URI:       s.URI,
			ParentURI: s.Parent,
			RootURI:   s.Root,
			Content:   s.Content,
		}
	}
	return facts
}

// factFetcher is an enrich.Fetcher over the scenario's post set.
// URIs absent from the set behave like deleted posts.
type factFetcher map[string]event.PostFact

func (f factFetcher) FetchPosts(_ context.Context, uris []string) ([]event.PostFact, error) {
	var posts []event.PostFact
	for _, uri := range uris {
		if p, ok := f[uri]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// newFactFetcher maps facts by URI.
func newFactFetcher(facts []event.PostFact) factFetcher {
	m := make(factFetcher, len(facts))
	for _, p := range facts {
		m[p.URI] = p
	}
	return m
}
