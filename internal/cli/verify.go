package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/event"
	"github.com/dmoskov/shadowsky/internal/ingest"
)

// VerifyResult reports the determinism check outcome.
type VerifyResult struct {
	Deterministic bool   `json:"deterministic"`
	Events        int    `json:"events"`
	FeedItems     int    `json:"feed_items"`
	Threads       int    `json:"threads"`
	Mismatch      string `json:"mismatch,omitempty"`
}

// NewVerifyCommand creates the verify command.
//
// Verify recomputes both derived views twice over the same inputs and
// compares the serialized output byte for byte. Identical inputs must
// produce identical projections; a mismatch means nondeterminism crept
// into the pipeline (map iteration, sort instability) and is a bug.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var postsPath string

	cmd := &cobra.Command{
		Use:           "verify <events.jsonl>",
		Short:         "Verify that derived views recompute identically",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], postsPath, cmd)
		},
	}

	cmd.Flags().StringVar(&postsPath, "posts", "", "JSONL file of post facts to merge before verifying")

	return cmd
}

func runVerify(opts *RootOptions, eventsPath, postsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	inbox, err := loadInbox(cmd.Context(), eventsPath)
	if err != nil {
		_ = formatter.Error("E_LOAD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load events", err)
	}

	store := cache.NewStore()
	if postsPath != "" {
		fetcher, err := ingest.NewFileFetcher(postsPath)
		if err != nil {
			_ = formatter.Error("E_LOAD", err.Error(), nil)
			return WrapExitError(ExitCommandError, "load posts", err)
		}
		store.Merge(fetcher.All())
	}

	events := inbox.Events()
	replies := inbox.Replies()
	snap := store.Snapshot()

	feedA, threadsA, err := projection(events, replies, snap)
	if err != nil {
		return WrapExitError(ExitCommandError, "serialize first pass", err)
	}
	feedB, threadsB, err := projection(events, replies, snap)
	if err != nil {
		return WrapExitError(ExitCommandError, "serialize second pass", err)
	}

	result := VerifyResult{
		Deterministic: true,
		Events:        len(events),
	}
	var feed []engine.FeedItem
	if err := json.Unmarshal(feedA, &feed); err == nil {
		result.FeedItems = len(feed)
	}
	var threads []engine.ConversationThread
	if err := json.Unmarshal(threadsA, &threads); err == nil {
		result.Threads = len(threads)
	}

	if !bytes.Equal(feedA, feedB) {
		result.Deterministic = false
		result.Mismatch = "aggregation"
	} else if !bytes.Equal(threadsA, threadsB) {
		result.Deterministic = false
		result.Mismatch = "conversations"
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if result.Deterministic {
		fmt.Fprintf(formatter.Writer, "✓ Deterministic: %d event(s) -> %d feed item(s), %d thread(s)\n",
			result.Events, result.FeedItems, result.Threads)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Nondeterministic output in %s pass\n", result.Mismatch)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("nondeterministic %s output", result.Mismatch))
	}
	return nil
}

// projection computes and serializes both derived views.
// A fresh engine per call: memo reuse across the compared passes would
// hide exactly the kind of nondeterminism verify exists to catch.
func projection(events, replies []event.NotificationEvent, snap *cache.Snapshot) (feed, threads []byte, err error) {
	eng := engine.New()

	feed, err = json.Marshal(eng.ProcessAggregation(events))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal feed: %w", err)
	}
	threads, err = json.Marshal(eng.BuildConversations(replies, snap))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal threads: %w", err)
	}
	return feed, threads, nil
}
