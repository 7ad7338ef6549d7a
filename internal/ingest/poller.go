package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPollInterval is how long the poller sleeps between drains.
const DefaultPollInterval = 60 * time.Second

// Poller drives a Source through its cursor chain and feeds pages into
// an Inbox.
//
// A drain follows cursors until the source reports no next page. The
// run loop then sleeps for the poll interval and drains again from the
// start; the inbox's URI de-duplication absorbs the overlap.
type Poller struct {
	source   Source
	inbox    *Inbox
	interval time.Duration
}

// NewPoller creates a poller feeding the given inbox.
// A non-positive interval selects the default.
func NewPoller(source Source, inbox *Inbox, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{source: source, inbox: inbox, interval: interval}
}

// Drain fetches pages from the empty cursor until the chain ends,
// returning how many new events the inbox accepted.
func (p *Poller) Drain(ctx context.Context) (int, error) {
	added := 0
	cursor := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		page, err := p.source.FetchEvents(ctx, cursor)
		if err != nil {
			return added, fmt.Errorf("fetch events at cursor %q: %w", cursor, err)
		}
		pages++
		added += p.inbox.AddPage(page)

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	slog.Debug("event source drained",
		"pages", pages,
		"new_events", added,
		"inbox", p.inbox.Len(),
	)
	return added, nil
}

// Run drains the source, then re-drains on every poll interval until
// the context is cancelled. Fetch errors are logged and the loop keeps
// going; a flaky source should not kill the session.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("poller starting", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("poller stopping: context cancelled")
				return ctx.Err()
			}
			slog.Error("event drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("poller stopping: context cancelled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
