package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/event"
)

// Fetcher performs the actual network operation for a batch of post URIs.
//
// Implementations may fail per batch and may return fewer facts than
// requested (deleted or unavailable posts simply do not appear).
type Fetcher interface {
	FetchPosts(ctx context.Context, uris []string) ([]event.PostFact, error)
}

// TokenGenerator produces correlation tokens for enrichment batches.
// Implemented by UUIDv7Generator (production) and testutil.FixedTokens.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 batch tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time when correlating batch log records.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// URIState is the per-URI request state.
// Absence from the state map means "unknown" (eligible for fetching).
type URIState string

const (
	// StateRequested means a batch containing the URI is in flight.
	StateRequested URIState = "requested"

	// StateResolved means a fetch returned a fact for the URI.
	StateResolved URIState = "resolved"

	// StateFailed means the URI's batch failed or the fetch came back
	// without it. Failed URIs are excluded from every later frontier
	// pass for the rest of the session.
	StateFailed URIState = "failed"
)

// DefaultBatchSize bounds how many URIs go into one fetch request.
const DefaultBatchSize = 25

// maxEnrichPasses bounds the frontier-fetch-rescan loop in Enrich.
// Each pass can only discover ancestors one hop further out, so deep
// threads need several passes, but the loop must not run away when a
// fetcher keeps returning facts that reference yet more posts.
const maxEnrichPasses = 32

// Coordinator keeps the post-fact cache supplied with needed ancestry.
//
// Thread-safety: all methods are safe for concurrent use. The state map
// is the in-flight de-duplication mechanism: a URI is marked requested
// under lock before its batch is issued, so overlapping frontier passes
// never double-request it. Results are always merged when they arrive,
// even if the frontier has since moved on.
type Coordinator struct {
	store     *cache.Store
	fetcher   Fetcher
	backing   cache.Backing
	batchSize int
	tokens    TokenGenerator

	mu    sync.Mutex
	state map[string]URIState
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBatchSize overrides the fetch batch bound.
// Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n >= 1 {
			c.batchSize = n
		}
	}
}

// WithTokenGenerator overrides batch token generation.
// Tests use a fixed sequence for deterministic log and error output.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(c *Coordinator) {
		c.tokens = g
	}
}

// WithBacking adds a write-through persistence layer. After every
// successful batch merge the fetched facts are saved to the backing;
// save failures are logged and never fail the batch.
func WithBacking(b cache.Backing) Option {
	return func(c *Coordinator) {
		c.backing = b
	}
}

// NewCoordinator creates a coordinator fetching into the given store.
func NewCoordinator(store *cache.Store, fetcher Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		fetcher:   fetcher,
		batchSize: DefaultBatchSize,
		tokens:    UUIDv7Generator{},
		state:     make(map[string]URIState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync fetches the frontier URIs that are still eligible: anything not
// already requested, resolved, or failed. Eligible URIs are marked
// requested before their batch is issued, then moved to resolved or
// failed as results arrive.
//
// Batch failures do not stop the pass; remaining batches still run and
// the per-batch errors come back joined. A context cancellation, before
// or during a batch, stops the pass and returns the unsettled URIs to
// the unknown state so a later pass can pick them up.
func (c *Coordinator) Sync(ctx context.Context, frontier []string) error {
	pending := c.claim(frontier)
	if len(pending) == 0 {
		return nil
	}

	slog.Info("enrichment pass starting",
		"pending", len(pending),
		"batch_size", c.batchSize,
	)

	var errs []error
	for start := 0; start < len(pending); start += c.batchSize {
		end := start + c.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := ctx.Err(); err != nil {
			// Not yet issued: release the rest of the claim.
			c.release(pending[start:])
			return errors.Join(append(errs, &FetchError{Code: ErrCodeCancelled, URIs: pending[start:], Err: err})...)
		}

		token := c.tokens.Generate()
		slog.Debug("fetching post facts",
			"batch_token", token,
			"uris", len(batch),
		)

		posts, err := c.fetcher.FetchPosts(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-flight: nothing is wrong with these URIs,
				// so they go back to unknown for a later pass.
				c.release(pending[start:])
				slog.Warn("enrichment pass cancelled mid-batch",
					"batch_token", token,
					"released", len(pending[start:]),
				)
				return errors.Join(append(errs, &FetchError{Code: ErrCodeCancelled, Token: token, URIs: pending[start:], Err: err})...)
			}
			c.markAll(batch, StateFailed)
			slog.Error("post fact batch failed",
				"batch_token", token,
				"uris", len(batch),
				"error", err,
			)
			errs = append(errs, &FetchError{Code: ErrCodeBatchFailed, Token: token, URIs: batch, Err: err})
			continue
		}

		merged := c.store.Merge(posts)
		c.settle(batch, posts)

		slog.Info("post fact batch resolved",
			"batch_token", token,
			"requested", len(batch),
			"returned", len(posts),
			"merged", merged,
		)

		if c.backing != nil && len(posts) > 0 {
			if err := c.backing.Save(ctx, posts); err != nil {
				slog.Warn("cache write-through failed",
					"batch_token", token,
					"error", err,
				)
			}
		}
	}

	return errors.Join(errs...)
}

// Enrich runs frontier passes until the frontier has no eligible URIs
// left: fetch, merge, recompute the frontier against the improved
// snapshot, repeat. Each pass can reach ancestors one hop further out.
//
// Batch errors are collected, not fatal; the failed URIs drop out of
// the eligible set, so the loop always terminates.
func (c *Coordinator) Enrich(ctx context.Context, replies []event.NotificationEvent) error {
	var errs []error
	for pass := 0; pass < maxEnrichPasses; pass++ {
		snap := c.store.Snapshot()
		frontier := engine.Frontier(replies, snap)
		if len(c.eligible(frontier)) == 0 {
			break
		}
		if err := c.Sync(ctx, frontier); err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(errs, err)...)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// claim filters the frontier down to eligible URIs and marks them
// requested in one critical section.
func (c *Coordinator) claim(frontier []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending []string
	for _, uri := range frontier {
		if uri == "" {
			continue
		}
		if _, tracked := c.state[uri]; tracked {
			continue
		}
		c.state[uri] = StateRequested
		pending = append(pending, uri)
	}
	return pending
}

// eligible returns the frontier URIs that claim would accept, without
// claiming them.
func (c *Coordinator) eligible(frontier []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending []string
	for _, uri := range frontier {
		if uri == "" {
			continue
		}
		if _, tracked := c.state[uri]; !tracked {
			pending = append(pending, uri)
		}
	}
	return pending
}

// settle marks returned URIs resolved and requested-but-absent URIs
// failed. A post the fetcher did not return is deleted or unavailable;
// re-requesting it every pass would never succeed.
func (c *Coordinator) settle(batch []string, posts []event.PostFact) {
	returned := make(map[string]bool, len(posts))
	for _, p := range posts {
		returned[p.URI] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uri := range batch {
		if returned[uri] {
			c.state[uri] = StateResolved
		} else {
			c.state[uri] = StateFailed
		}
	}
}

// markAll sets one state for a whole batch.
func (c *Coordinator) markAll(batch []string, s URIState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uri := range batch {
		c.state[uri] = s
	}
}

// release returns claimed URIs to the unknown state.
// Used when a cancelled pass never issued their batch.
func (c *Coordinator) release(uris []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uri := range uris {
		if c.state[uri] == StateRequested {
			delete(c.state, uri)
		}
	}
}

// StateOf returns the tracked state for a URI.
// The second return is false for untracked (unknown) URIs.
func (c *Coordinator) StateOf(uri string) (URIState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.state[uri]
	return s, ok
}

// StateCounts returns how many URIs are in each state.
// Used for testing and introspection.
func (c *Coordinator) StateCounts() map[URIState]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[URIState]int)
	for _, s := range c.state {
		counts[s]++
	}
	return counts
}
