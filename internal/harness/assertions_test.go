package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/event"
	"github.com/dmoskov/shadowsky/internal/testutil"
)

// aggregatedResult builds a Result as the aggregate op would: a like
// cluster of three plus a singleton reply.
func aggregatedResult() *Result {
	feed := engine.ProcessAggregation([]event.NotificationEvent{
		testutil.Like("e1", "p1", "alice", "2026-01-05T09:00:00Z"),
		testutil.Like("e2", "p1", "bob", "2026-01-05T09:05:00Z"),
		testutil.Like("e3", "p1", "carol", "2026-01-05T09:10:00Z"),
		testutil.Reply("r1", "p1", "dan", "2026-01-05T11:00:00Z"),
	})
	r := NewResult()
	r.Feed = feed
	r.ranAggregate = true
	return r
}

func threadedResult() *Result {
	r := NewResult()
	r.Threads = []engine.ConversationThread{
		{
			RootURI:      "p1",
			Replies:      []event.NotificationEvent{testutil.Reply("r1", "p1", "bob", "2026-01-05T09:00:00Z")},
			Participants: []string{"bob"},
			TotalReplies: 1,
		},
	}
	r.Frontier = []string{"p1", "r3"}
	r.ranConversations = true
	r.ranFrontier = true
	return r
}

func TestEvaluate_FeedCount(t *testing.T) {
	r := aggregatedResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertFeedCount, Count: 2}}))

	failures := EvaluateAssertions(r, []Assertion{{Type: AssertFeedCount, Count: 5}})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "5 feed item(s)")
	assert.Contains(t, failures[0], "2 feed item(s)")
}

func TestEvaluate_Cluster(t *testing.T) {
	r := aggregatedResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertCluster, TargetKey: "like:p1", Size: 3},
	}))

	// Right key, wrong size.
	failures := EvaluateAssertions(r, []Assertion{
		{Type: AssertCluster, TargetKey: "like:p1", Size: 4},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "x3")

	// No such key.
	failures = EvaluateAssertions(r, []Assertion{
		{Type: AssertCluster, TargetKey: "repost:p1", Size: 3},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "no cluster with that key")
}

func TestEvaluate_SingletonCount(t *testing.T) {
	r := aggregatedResult()
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertSingletonCount, Count: 1}}))
	assert.Len(t, EvaluateAssertions(r, []Assertion{{Type: AssertSingletonCount, Count: 0}}), 1)
}

func TestEvaluate_Thread(t *testing.T) {
	r := threadedResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertThreadCount, Count: 1},
		{Type: AssertThread, Root: "p1", Replies: 1, Participants: []string{"bob"}},
	}))

	failures := EvaluateAssertions(r, []Assertion{
		{Type: AssertThread, Root: "p1", Participants: []string{"alice"}},
	})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "participants")

	failures = EvaluateAssertions(r, []Assertion{{Type: AssertThread, Root: "p7"}})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], `rooted at "p7"`)
}

func TestEvaluate_Frontier(t *testing.T) {
	r := threadedResult()

	assert.Empty(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertFrontierContains, URI: "p1"},
	}))
	assert.Len(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertFrontierContains, URI: "p99"},
	}), 1)
	assert.Len(t, EvaluateAssertions(r, []Assertion{
		{Type: AssertFrontierEmpty},
	}), 1)

	r.Frontier = nil
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertFrontierEmpty}}))
}

func TestEvaluate_AssertionAgainstMissingOp(t *testing.T) {
	r := NewResult()

	failures := EvaluateAssertions(r, []Assertion{{Type: AssertFeedCount, Count: 0}})
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "operation never ran")
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Type: "feed_count", Expected: "4 feed item(s)", Actual: "2 feed item(s)"}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: feed_count")
	assert.Contains(t, msg, "Expected: 4 feed item(s)")
	assert.Contains(t, msg, "Actual: 2 feed item(s)")
}
