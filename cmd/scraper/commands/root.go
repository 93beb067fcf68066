package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/logging"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/metrics"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/sink"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/captcha"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/pipeline"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/strategies"
)

type rootOptions struct {
	configPath string
	method     string
	limit      int
	headless   bool
	saveOnly   bool
}

// NewRootCmd builds the scraper command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "scraper collects football matches from SofaScore via its API, a browser or captured traffic.",
		Long: `scraper collects a small, deduplicated list of football matches from SofaScore.

Methods:
  api      poll the public JSON endpoints
  browser  render the site in Chrome and read the page
  network  render the site, interact with it and record its API calls
  auto     try api, then browser, then network until the limit is reached

When a challenge page appears, solve it in the browser window and press Enter.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, opts)
		},
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var, empty = built-in defaults)")

	rf := cmd.Flags()
	rf.StringVarP(&opts.method, "method", "m", "", "Scraping method: "+strings.Join(strategies.AvailableNames(), "|")+" (default from config)")
	rf.IntVarP(&opts.limit, "limit", "l", 0, "Maximum number of matches (default from config)")
	rf.BoolVar(&opts.headless, "headless", false, "Run the browser without a window")
	rf.BoolVar(&opts.saveOnly, "save-only", false, "Only save results, do not print them")

	cmd.AddCommand(newAnalyzeCmd(opts))
	return cmd
}

// applyFlags overrides config values with the flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *rootOptions) error {
	flags := cmd.Flags()
	if flags.Changed("method") {
		m := strings.ToLower(strings.TrimSpace(opts.method))
		if _, ok := strategies.FactoryByName(m); !ok {
			return fmt.Errorf("invalid --method %q (choose from %s)", opts.method, strings.Join(strategies.AvailableNames(), ", "))
		}
		cfg.Scraper.Method = m
	}
	if flags.Changed("limit") {
		cfg.Scraper.Limit = opts.limit
	}
	if flags.Changed("headless") {
		cfg.Scraper.Headless = opts.headless
	}
	return nil
}

func runScrape(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, cfg, opts); err != nil {
		return err
	}

	_, closer, err := logging.SetupLogger(cfg.Logging, "scraper")
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
	} else {
		defer closer.Close()
	}

	out := cmd.OutOrStdout()
	store := artifacts.New(cfg.Paths)
	if err := store.EnsureDirs(); err != nil {
		slog.Warn("Failed to create data directories", "error", err)
	}

	rec := metrics.New()
	p, err := pipeline.New(strategies.Deps{
		Config:   cfg,
		Headless: cfg.Scraper.Headless,
		Store:    store,
		Metrics:  rec,
		Signal:   captcha.LineSignal(cmd.InOrStdin()),
		Prompt:   out,
	})
	if err != nil {
		return err
	}

	slog.Info("Starting scraper", "method", cfg.Scraper.Method, "limit", cfg.Scraper.Limit, "headless", cfg.Scraper.Headless)
	res := p.Run(ctx, cfg.Scraper.Method, cfg.Scraper.Limit)
	if res.Err != nil {
		slog.Error("Scraping finished with errors", "method", res.Method, "state", res.State, "error", res.Err)
	}

	sinks := sink.FromConfig(ctx, cfg, store, sink.Options{SaveOnly: opts.saveOnly, Out: out})
	defer sinks.Close()
	run := sink.NewRunInfo(res.Method, res.Started, res.Took, res.Err)
	if err := sinks.Write(ctx, run, res.Matches); err != nil {
		slog.Error("Some results were not persisted", "error", err)
	}

	if res.Analysis != nil && !opts.saveOnly {
		renderAnalysis(out, *res.Analysis)
	}

	if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		slog.Warn("Failed to write metrics", "path", cfg.Metrics.Textfile, "error", err)
	}

	slog.Info("Scraper finished", "matches", len(res.Matches), "took", res.Took, "run_id", run.ID)
	return nil
}
