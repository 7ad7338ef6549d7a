package cli

import (
	"context"

	"github.com/dmoskov/shadowsky/internal/ingest"
)

// loadInbox drains a JSONL event fixture into a fresh inbox.
//
// Going through the source/poller path instead of reading the file
// directly means the CLI exercises the same pagination and URI
// de-duplication the serve loop uses.
func loadInbox(ctx context.Context, path string) (*ingest.Inbox, error) {
	source, err := ingest.NewFileSource(path, ingest.DefaultPageSize)
	if err != nil {
		return nil, err
	}

	inbox := ingest.NewInbox()
	poller := ingest.NewPoller(source, inbox, 0)
	if _, err := poller.Drain(ctx); err != nil {
		return nil, err
	}
	return inbox, nil
}
