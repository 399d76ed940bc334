package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/portalaudit/config"
	"github.com/lukemcguire/portalaudit/crawler"
	"github.com/lukemcguire/portalaudit/store"
)

// NewRootCmd creates the root command for portalaudit.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalaudit",
		Short: "Accessibility crawler for municipal web portals",
		Long: `portalaudit crawls a municipal portal breadth-first from a seed URL,
staying inside the seed's portal namespace, and audits every page it
reaches for accessibility violations. Results are stored locally and can
be listed, re-analyzed and exported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().String("store", config.DefaultStoreBackend, "Result store backend (sqlite, redis, memory)")
	cmd.PersistentFlags().String("data-dir", "", "Directory holding the SQLite database (default: XDG data home)")
	cmd.PersistentFlags().String("redis-addr", config.DefaultRedisAddr, "Redis address for the redis store")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewResultsCmd())
	cmd.AddCommand(NewRulesCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger creates a structured logger based on verbosity setting.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig builds the effective configuration: defaults, then the config
// file if one is found, then any flag set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path := config.FindConfigFile(explicit); path != "" {
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Apply(f)
		cfg.ConfigFilePath = path
	} else if explicit != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicit)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set explicitly onto cfg. Flags a
// command does not define are never Changed, so one list serves all commands.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, fn func() error) {
		if err == nil && flags.Changed(name) {
			err = fn()
		}
	}

	set("verbose", func() (e error) { cfg.Verbose, e = flags.GetBool("verbose"); return })
	set("store", func() (e error) { cfg.StoreBackend, e = flags.GetString("store"); return })
	set("data-dir", func() (e error) { cfg.DataDir, e = flags.GetString("data-dir"); return })
	set("redis-addr", func() (e error) { cfg.RedisAddr, e = flags.GetString("redis-addr"); return })

	set("timeout", func() (e error) { cfg.Timeout, e = flags.GetDuration("timeout"); return })
	set("rate-limit", func() (e error) { cfg.RateLimit, e = flags.GetFloat64("rate-limit"); return })
	set("adaptive-rate", func() (e error) { cfg.AdaptiveRate, e = flags.GetBool("adaptive-rate"); return })
	set("retries", func() (e error) { cfg.Retries, e = flags.GetInt("retries"); return })
	set("user-agent", func() (e error) { cfg.UserAgent, e = flags.GetString("user-agent"); return })
	set("no-robots", func() error {
		ignore, e := flags.GetBool("no-robots")
		cfg.RespectRobots = !ignore
		return e
	})

	set("depth", func() (e error) { cfg.Depth, e = flags.GetInt("depth"); return })
	set("max-pages", func() (e error) { cfg.MaxPages, e = flags.GetInt("max-pages"); return })
	set("concurrency", func() (e error) { cfg.Concurrency, e = flags.GetInt("concurrency"); return })
	set("marker", func() (e error) { cfg.NamespaceMarker, e = flags.GetString("marker"); return })
	set("exclude", func() (e error) { cfg.ExcludedPaths, e = flags.GetStringSlice("exclude"); return })
	set("visited", func() (e error) { cfg.VisitedBackend, e = flags.GetString("visited"); return })

	return err
}

// addFetchFlags registers the flags shared by every command that fetches
// pages.
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().Float64("rate-limit", config.DefaultRateLimit, "Requests per second")
	cmd.Flags().Bool("adaptive-rate", false, "Adjust the request rate to observed latency")
	cmd.Flags().Int("retries", config.DefaultRetries, "Retries for transient fetch errors")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header")
	cmd.Flags().Bool("no-robots", false, "Ignore robots.txt")
}

func crawlerConfig(cfg *config.Config, logger *slog.Logger) crawler.Config {
	policy := crawler.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Retries

	return crawler.Config{
		MaxPages:        cfg.MaxPages,
		RequestTimeout:  cfg.Timeout,
		RateLimit:       cfg.RateLimit,
		AdaptiveRate:    cfg.AdaptiveRate,
		UserAgent:       cfg.UserAgent,
		RetryPolicy:     policy,
		RespectRobots:   cfg.RespectRobots,
		NamespaceMarker: cfg.NamespaceMarker,
		ExcludedPaths:   cfg.ExcludedPaths,
		MaxBodySize:     cfg.MaxBodySize,
		VisitedBackend:  cfg.VisitedBackend,
		Logger:          logger,
	}
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Backend:     cfg.StoreBackend,
		DataDir:     cfg.DataDir,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
	}
}

// session is the state every subcommand starts from.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	ctx    context.Context
	cancel context.CancelFunc
}

// newSession loads configuration, installs the logger, opens the store and
// returns a context cancelled on SIGINT or SIGTERM. Callers must Close it.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	logger.Debug("store opened", "backend", cfg.StoreBackend, "config", cfg.ConfigFilePath)

	return &session{cfg: cfg, logger: logger, store: st, ctx: ctx, cancel: cancel}, nil
}

func (s *session) newCrawler(progressCh chan<- crawler.CrawlEvent, opts ...crawler.Option) *crawler.Crawler {
	return crawler.New(crawlerConfig(s.cfg, s.logger), progressCh, opts...)
}

// Close releases the store and the signal handler.
func (s *session) Close() error {
	s.cancel()
	return s.store.Close()
}
