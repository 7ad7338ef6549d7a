package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/event"
	"github.com/dmoskov/shadowsky/internal/testutil"
)

// stubFetcher serves post facts from a fixed map and records every
// batch it is asked for.
type stubFetcher struct {
	mu      sync.Mutex
	posts   map[string]event.PostFact
	batches [][]string
	err     error
}

func newStubFetcher(posts ...event.PostFact) *stubFetcher {
	f := &stubFetcher{posts: make(map[string]event.PostFact)}
	for _, p := range posts {
		f.posts[p.URI] = p
	}
	return f
}

func (f *stubFetcher) FetchPosts(ctx context.Context, uris []string) ([]event.PostFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, append([]string(nil), uris...))
	if f.err != nil {
		return nil, f.err
	}
	var out []event.PostFact
	for _, uri := range uris {
		if p, ok := f.posts[uri]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// fetchFunc adapts a function to the Fetcher interface.
type fetchFunc func(ctx context.Context, uris []string) ([]event.PostFact, error)

func (f fetchFunc) FetchPosts(ctx context.Context, uris []string) ([]event.PostFact, error) {
	return f(ctx, uris)
}

func (f *stubFetcher) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *stubFetcher) batch(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[i]
}

// =============================================================================
// Sync
// =============================================================================

func TestSync_FetchesAndMergesFrontier(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher(
		testutil.Post("p1", "", ""),
		testutil.Post("p2", "p1", "p1"),
	)
	c := NewCoordinator(store, fetcher)

	err := c.Sync(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	st, ok := c.StateOf("p1")
	require.True(t, ok)
	assert.Equal(t, StateResolved, st)
}

func TestSync_RespectsBatchSize(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher()
	for _, uri := range []string{"a", "b", "c", "d", "e"} {
		fetcher.posts[uri] = event.PostFact{URI: uri}
	}
	c := NewCoordinator(store, fetcher, WithBatchSize(2))

	require.NoError(t, c.Sync(context.Background(), []string{"a", "b", "c", "d", "e"}))

	require.Equal(t, 3, fetcher.batchCount())
	assert.Equal(t, []string{"a", "b"}, fetcher.batch(0))
	assert.Equal(t, []string{"c", "d"}, fetcher.batch(1))
	assert.Equal(t, []string{"e"}, fetcher.batch(2))
}

func TestSync_SkipsAlreadyTrackedURIs(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher(testutil.Post("p1", "", ""))
	c := NewCoordinator(store, fetcher)

	require.NoError(t, c.Sync(context.Background(), []string{"p1"}))
	require.NoError(t, c.Sync(context.Background(), []string{"p1"}))

	assert.Equal(t, 1, fetcher.batchCount(), "resolved URI is never re-requested")
}

func TestSync_AbsentURIBecomesFailed(t *testing.T) {
	store := cache.NewStore()
	// Fetcher knows p1 but not the deleted post p2.
	fetcher := newStubFetcher(testutil.Post("p1", "", ""))
	c := NewCoordinator(store, fetcher)

	require.NoError(t, c.Sync(context.Background(), []string{"p1", "p2"}))

	st, _ := c.StateOf("p1")
	assert.Equal(t, StateResolved, st)
	st, _ = c.StateOf("p2")
	assert.Equal(t, StateFailed, st)

	// And a later pass leaves the deleted post alone.
	require.NoError(t, c.Sync(context.Background(), []string{"p2"}))
	assert.Equal(t, 1, fetcher.batchCount())
}

func TestSync_BatchFailureMarksFailedAndContinues(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher()
	fetcher.err = errors.New("upstream 503")
	c := NewCoordinator(store, fetcher,
		WithBatchSize(1),
		WithTokenGenerator(testutil.NewFixedTokens("batch-1", "batch-2")),
	)

	err := c.Sync(context.Background(), []string{"p1", "p2"})
	require.Error(t, err)
	assert.True(t, IsBatchFailed(err))

	// Both batches were attempted despite the first failing.
	assert.Equal(t, 2, fetcher.batchCount())
	assert.Equal(t, map[URIState]int{StateFailed: 2}, c.StateCounts())
	assert.Contains(t, err.Error(), "batch-1")
	assert.Contains(t, err.Error(), "batch-2")
}

func TestSync_FailedURIsNeverRetriedInSession(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher()
	fetcher.err = errors.New("upstream 503")
	c := NewCoordinator(store, fetcher)

	require.Error(t, c.Sync(context.Background(), []string{"p1"}))

	// The fetcher recovers, but the failed URI stays settled.
	fetcher.err = nil
	fetcher.posts["p1"] = event.PostFact{URI: "p1"}
	require.NoError(t, c.Sync(context.Background(), []string{"p1"}))

	assert.Equal(t, 1, fetcher.batchCount())
	assert.Equal(t, 0, store.Len())
}

func TestSync_CancelledContextReleasesClaims(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher(testutil.Post("p1", "", ""))
	c := NewCoordinator(store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sync(ctx, []string{"p1"})
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeCancelled, fe.Code)
	assert.ErrorIs(t, err, context.Canceled)

	// The unissued claim went back to unknown, so a fresh pass works.
	_, tracked := c.StateOf("p1")
	assert.False(t, tracked)

	require.NoError(t, c.Sync(context.Background(), []string{"p1"}))
	assert.Equal(t, 1, store.Len())
}

func TestSync_MidFlightCancellationReleasesBatch(t *testing.T) {
	store := cache.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetcher := fetchFunc(func(ctx context.Context, uris []string) ([]event.PostFact, error) {
		// The caller goes away while the batch is in flight.
		calls++
		cancel()
		return nil, ctx.Err()
	})
	c := NewCoordinator(store, fetcher, WithBatchSize(1))

	err := c.Sync(ctx, []string{"p1", "p2"})
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeCancelled, fe.Code)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "the pass stops at the cancelled batch")

	// Neither the in-flight URI nor the unissued one is marked failed;
	// both are eligible again once the caller comes back.
	for _, uri := range []string{"p1", "p2"} {
		_, tracked := c.StateOf(uri)
		assert.False(t, tracked, uri)
	}
}

func TestSync_EmptyFrontierIsNoOp(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher()
	c := NewCoordinator(store, fetcher)

	require.NoError(t, c.Sync(context.Background(), nil))
	assert.Equal(t, 0, fetcher.batchCount())
}

func TestSync_WriteThroughToBacking(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher(testutil.Post("p1", "", ""))
	backing := &recordingBacking{}
	c := NewCoordinator(store, fetcher, WithBacking(backing))

	require.NoError(t, c.Sync(context.Background(), []string{"p1"}))

	require.Len(t, backing.saved, 1)
	assert.Equal(t, "p1", backing.saved[0].URI)
}

func TestSync_BackingFailureDoesNotFailBatch(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher(testutil.Post("p1", "", ""))
	backing := &recordingBacking{saveErr: errors.New("disk full")}
	c := NewCoordinator(store, fetcher, WithBacking(backing))

	require.NoError(t, c.Sync(context.Background(), []string{"p1"}))
	assert.Equal(t, 1, store.Len(), "merge succeeded despite write-through failure")
}

// recordingBacking records Save calls in memory.
type recordingBacking struct {
	mu      sync.Mutex
	saved   []event.PostFact
	saveErr error
}

func (b *recordingBacking) Load(ctx context.Context) ([]event.PostFact, error) { return nil, nil }

func (b *recordingBacking) Save(ctx context.Context, posts []event.PostFact) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saved = append(b.saved, posts...)
	return nil
}

func (b *recordingBacking) Close() error { return nil }

// =============================================================================
// Enrich
// =============================================================================

func TestEnrich_WalksAncestryAcrossPasses(t *testing.T) {
	// The reply's fact points at p2, p2 at p1. Each pass discovers
	// ancestors one hop further out.
	store := cache.NewStore()
	fetcher := newStubFetcher(
		testutil.Post("r1", "p2", ""),
		testutil.Post("p2", "p1", ""),
		testutil.Post("p1", "", ""),
	)
	c := NewCoordinator(store, fetcher)

	replies := []event.NotificationEvent{
		testutil.Reply("r1", "p2", "bob", "2026-01-05T09:00:00Z"),
	}

	require.NoError(t, c.Enrich(context.Background(), replies))

	assert.Equal(t, 3, store.Len(), "full ancestry chain fetched")
	st, _ := c.StateOf("p1")
	assert.Equal(t, StateResolved, st)
}

func TestEnrich_TerminatesWhenFrontierOnlyHasFailedURIs(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher() // knows nothing: every URI comes back absent
	c := NewCoordinator(store, fetcher)

	replies := []event.NotificationEvent{
		testutil.Reply("r1", "p1", "bob", "2026-01-05T09:00:00Z"),
	}

	require.NoError(t, c.Enrich(context.Background(), replies))

	// One pass requested the frontier; everything settled failed and the
	// loop stopped instead of spinning.
	assert.Equal(t, 1, fetcher.batchCount())
	counts := c.StateCounts()
	assert.Equal(t, 0, counts[StateRequested])
	assert.NotZero(t, counts[StateFailed])
}

func TestEnrich_NoRepliesIsNoOp(t *testing.T) {
	store := cache.NewStore()
	fetcher := newStubFetcher()
	c := NewCoordinator(store, fetcher)

	require.NoError(t, c.Enrich(context.Background(), nil))
	assert.Equal(t, 0, fetcher.batchCount())
}
