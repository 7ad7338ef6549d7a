package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/event"
)

// AggregateResult is the JSON payload of the aggregate command.
type AggregateResult struct {
	Items []engine.FeedItem `json:"items"`
	Stats engine.Stats      `json:"stats"`
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate <events.jsonl>",
		Short: "Build the clustered notification feed from an event file",
		Long: `Aggregate reads a JSONL file of raw notification events, normalizes
them, collapses aggregable bursts into time-windowed clusters, and
prints the merged feed newest-first along with summary stats.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runAggregate(opts *RootOptions, eventsPath string, cmd *cobra.Command) error {
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

	res := inbox.Result()
	formatter.VerboseLog("Loaded %d event(s), %d list-only, %d dropped",
		len(res.Events), len(res.ListOnly), len(res.Dropped))

	eng := engine.New()
	items := eng.ProcessAggregation(res.Events)
	stats := engine.ComputeStats(res, nil)

	if formatter.Format == "json" {
		return formatter.Success(AggregateResult{Items: items, Stats: stats})
	}

	printFeed(formatter, items)
	fmt.Fprintf(formatter.Writer, "\n%d item(s), %d event(s), %d unread\n",
		len(items), stats.Total, stats.Unread)
	return nil
}

// printFeed renders the merged feed as text, one line per item.
func printFeed(formatter *OutputFormatter, items []engine.FeedItem) {
	for _, item := range items {
		if item.Cluster != nil {
			c := item.Cluster
			fmt.Fprintf(formatter.Writer, "%s  %-7s x%-3d %s  (%s)\n",
				c.LatestTimestamp.Format("2006-01-02 15:04"),
				c.Reason,
				len(c.Members),
				c.TargetKey,
				actorSummary(c.Actors),
			)
			continue
		}
		e := item.Event
		fmt.Fprintf(formatter.Writer, "%s  %-7s      %s  (@%s)\n",
			e.IndexedAt.Format("2006-01-02 15:04"),
			e.Reason,
			e.URI,
			e.Actor.Handle,
		)
	}
}

// actorSummary renders up to three handles plus an overflow count.
func actorSummary(actors []event.Actor) string {
	var handles []string
	for i, a := range actors {
		if i == 3 {
			handles = append(handles, fmt.Sprintf("+%d more", len(actors)-3))
			break
		}
		handles = append(handles, "@"+a.Handle)
	}
	return strings.Join(handles, ", ")
}
