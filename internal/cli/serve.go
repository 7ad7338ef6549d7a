package cli

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmoskov/shadowsky/internal/cache"
	"github.com/dmoskov/shadowsky/internal/engine"
	"github.com/dmoskov/shadowsky/internal/enrich"
	"github.com/dmoskov/shadowsky/internal/httpapi"
	"github.com/dmoskov/shadowsky/internal/ingest"
)

// ServeConfig is the operational configuration for the view server.
// Algorithmic constants (aggregation window, thresholds) are fixed in
// code and deliberately absent here.
type ServeConfig struct {
	// Listen is the HTTP listen address, e.g. ":8372".
	Listen string `yaml:"listen"`

	// EventsFile optionally seeds and polls a JSONL event fixture.
	// Without it, events arrive only via POST /api/events.
	EventsFile string `yaml:"events_file,omitempty"`

	// PostsFile optionally configures a JSONL post-fact fixture as the
	// enrichment fetcher. Without it, facts arrive only via POST /api/posts.
	PostsFile string `yaml:"posts_file,omitempty"`

	// CacheDB optionally persists the post-fact cache in SQLite.
	CacheDB string `yaml:"cache_db,omitempty"`

	// RedisAddr optionally persists the post-fact cache in a shared
	// Redis instance. Mutually exclusive with CacheDB.
	RedisAddr string `yaml:"redis_addr,omitempty"`

	// PollIntervalSeconds is the event re-poll interval. Zero selects
	// the default.
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty"`

	// FetchBatchSize bounds enrichment batches. Zero selects the default.
	FetchBatchSize int `yaml:"fetch_batch_size,omitempty"`
}

// LoadServeConfig reads and validates a YAML config file.
// Unknown fields are rejected to catch typos.
func LoadServeConfig(path string) (*ServeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ServeConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Listen == "" {
		return nil, fmt.Errorf("invalid config: listen is required")
	}
	if cfg.CacheDB != "" && cfg.RedisAddr != "" {
		return nil, fmt.Errorf("invalid config: cache_db and redis_addr are mutually exclusive")
	}
	return &cfg, nil
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the derived views over HTTP",
		Long: `Serve runs the view server: the aggregated feed, conversation
threads, frontier, and stats as JSON endpoints, plus ingestion
endpoints for pushing event pages and post facts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, configPath, cmd)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "shadowsky.yaml", "path to YAML config")

	return cmd
}

func runServe(opts *RootOptions, configPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := LoadServeConfig(configPath)
	if err != nil {
		_ = formatter.Error("E_CONFIG", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}

	store := cache.NewStore()

	var backing cache.Backing
	switch {
	case cfg.CacheDB != "":
		sqlite, err := cache.OpenSQLite(cfg.CacheDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "open cache database", err)
		}
		backing = sqlite
	case cfg.RedisAddr != "":
		backing = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), "")
	}
	if backing != nil {
		defer backing.Close()
		loaded, err := cache.Warm(cmd.Context(), store, backing)
		if err != nil {
			return WrapExitError(ExitCommandError, "warm cache", err)
		}
		formatter.VerboseLog("Warmed cache with %d fact(s)", loaded)
	}

	var coord *enrich.Coordinator
	if cfg.PostsFile != "" {
		fetcher, err := ingest.NewFileFetcher(cfg.PostsFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "load posts", err)
		}
		coordOpts := []enrich.Option{enrich.WithBatchSize(cfg.FetchBatchSize)}
		if backing != nil {
			coordOpts = append(coordOpts, enrich.WithBacking(backing))
		}
		coord = enrich.NewCoordinator(store, fetcher, coordOpts...)
	}

	inbox := ingest.NewInbox()
	if cfg.EventsFile != "" {
		source, err := ingest.NewFileSource(cfg.EventsFile, ingest.DefaultPageSize)
		if err != nil {
			return WrapExitError(ExitCommandError, "load events", err)
		}
		interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
		poller := ingest.NewPoller(source, inbox, interval)
		go func() {
			if err := poller.Run(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				formatter.VerboseLog("Poller stopped: %v", err)
			}
		}()
	}

	server := httpapi.New(inbox, store, engine.New(), coord)
	formatter.VerboseLog("Listening on %s", cfg.Listen)
	if err := server.Start(cfg.Listen); err != nil {
		return WrapExitError(ExitCommandError, "serve", err)
	}
	return nil
}
