package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/enrich"
	"github.com/dmoskov/shadowsky/internal/ingest"
)

// ThreadsResult is the JSON payload of the threads command.
type ThreadsResult struct {
	Threads  []engine.ConversationThread `json:"threads"`
	Frontier []string                    `json:"frontier,omitempty"`
}

// NewThreadsCommand creates the threads command.
func NewThreadsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		postsPath string
		doEnrich  bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "threads <events.jsonl>",
		Short: "Reconstruct conversation threads from reply events",
		Long: `Threads buckets reply events under their resolved conversation root.

With --posts, the given JSONL file of post facts acts as the ancestry
source. By default its facts are merged into the cache wholesale; with
--enrich, the enrichment coordinator instead walks the frontier in
bounded batches against the file, exercising the same state machine the
live fetch path uses. Any frontier left after resolution is printed -
those ancestors are simply unknown to the posts file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThreads(rootOpts, args[0], postsPath, doEnrich, batchSize, cmd)
		},
	}

	cmd.Flags().StringVar(&postsPath, "posts", "", "JSONL file of post facts (ancestry source)")
	cmd.Flags().BoolVar(&doEnrich, "enrich", false, "resolve ancestry via the enrichment coordinator instead of a wholesale merge")
	cmd.Flags().IntVar(&batchSize, "batch-size", enrich.DefaultBatchSize, "fetch batch size when enriching")

	return cmd
}

func runThreads(opts *RootOptions, eventsPath, postsPath string, doEnrich bool, batchSize int, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if doEnrich && postsPath == "" {
		return NewExitError(ExitCommandError, "--enrich requires --posts")
	}

	inbox, err := loadInbox(cmd.Context(), eventsPath)
	if err != nil {
		_ = formatter.Error("E_LOAD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load events", err)
	}
	replies := inbox.Replies()
	formatter.VerboseLog("Loaded %d event(s), %d repl(ies)", inbox.Len(), len(replies))

	store := cache.NewStore()
	if postsPath != "" {
		fetcher, err := ingest.NewFileFetcher(postsPath)
		if err != nil {
			_ = formatter.Error("E_LOAD", err.Error(), nil)
			return WrapExitError(ExitCommandError, "load posts", err)
		}

		if doEnrich {
			coord := enrich.NewCoordinator(store, fetcher, enrich.WithBatchSize(batchSize))
			if err := coord.Enrich(cmd.Context(), replies); err != nil {
				// Partial ancestry still produces threads; surface and go on.
				formatter.VerboseLog("Enrichment incomplete: %v", err)
			}
			formatter.VerboseLog("Coordinator states: %v", coord.StateCounts())
		} else {
			merged := store.Merge(fetcher.All())
			formatter.VerboseLog("Merged %d post fact(s)", merged)
		}
	}

	snap := store.Snapshot()
	eng := engine.New()
	threads := eng.BuildConversations(replies, snap)
	frontier := eng.Frontier(replies, snap)

	if formatter.Format == "json" {
		return formatter.Success(ThreadsResult{Threads: threads, Frontier: frontier})
	}

	printThreads(formatter, threads)
	if len(frontier) > 0 {
		fmt.Fprintf(formatter.Writer, "\n%d unresolved ancestor(s): %s\n",
			len(frontier), strings.Join(frontier, ", "))
	}
	return nil
}

// printThreads renders threads as text, newest first.
func printThreads(formatter *OutputFormatter, threads []engine.ConversationThread) {
	for _, t := range threads {
		fmt.Fprintf(formatter.Writer, "%s  %d repl(ies), %d participant(s), latest %s\n",
			t.RootURI,
			t.TotalReplies,
			len(t.Participants),
			t.LatestReply.IndexedAt.Format("2006-01-02 15:04"),
		)
		for _, handle := range t.Participants {
			fmt.Fprintf(formatter.Writer, "    @%s\n", handle)
		}
	}
	fmt.Fprintf(formatter.Writer, "\n%d thread(s)\n", len(threads))
}
