package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawler/internal/config"
	"github.com/nao1215/wordcrawler/internal/crawler"
	"github.com/nao1215/wordcrawler/internal/fetcher"
	"github.com/nao1215/wordcrawler/internal/model"
	"github.com/nao1215/wordcrawler/internal/pipeline"
	"github.com/nao1215/wordcrawler/internal/profiler"
	"github.com/nao1215/wordcrawler/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl web pages and count words",
		Long: `Crawl fetches the given start pages, follows their links and counts every word.

Each page is fetched at most once. Links are followed until the depth limit
is reached, and no new page is fetched after the deadline. Pages that fail
to load are skipped without stopping the crawl.

Examples:
  # Crawl a site three links deep
  wordcrawler crawl -d 3 https://example.com/

  # Crawl two sites for at most ten seconds
  wordcrawler crawl -t 10s https://example.com/ https://example.org/

  # Skip images and numbers
  wordcrawler crawl -i '.*\.png' -w '[0-9]+' https://example.com/

  # Write a Markdown report
  wordcrawler crawl -m -o report.md https://example.com/

  # Use start pages and settings from a configuration file
  wordcrawler crawl -c crawl.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	defaults := config.NewConfig()

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", defaults.MaxDepth,
		"Maximum number of link hops, counting the start page")
	cmd.Flags().DurationP("timeout", "t", defaults.Timeout,
		"Crawl deadline; no page is fetched after it passes (0 disables)")
	cmd.Flags().IntP("parallelism", "P", defaults.Parallelism,
		"Maximum number of pages fetched at once")
	cmd.Flags().StringArrayP("ignore", "i", nil,
		"Regular expression for URLs that are not crawled (repeatable)")
	cmd.Flags().StringArrayP("ignore-word", "w", nil,
		"Regular expression for words that are not counted (repeatable)")

	// HTTP flags
	cmd.Flags().String("user-agent", defaults.UserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Duration("delay", defaults.CrawlDelay,
		"Minimum interval between two requests (0 disables)")
	cmd.Flags().Duration("request-timeout", defaults.RequestTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().Bool("robots", false,
		"Respect robots.txt")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .wordcrawler in current or home directory)")

	// Report flags
	cmd.Flags().IntP("popular", "n", defaults.PopularWordCount,
		"Number of words shown in the report (0 shows all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("profile", "",
		"Append a timing profile to the specified file")
	cmd.Flags().Bool("no-save", false,
		"Do not store the result in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, stopping crawl...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	return getPersistentBool(cmd, "verbose")
}

// buildConfig creates a Config from defaults, the configuration file and
// cobra command flags, in that order of precedence. Only flags the user
// actually set override the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if flags.Changed("depth") {
		if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("parallelism") {
		if cfg.Parallelism, err = flags.GetInt("parallelism"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ignore") {
		if cfg.IgnoredURLs, err = flags.GetStringArray("ignore"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ignore-word") {
		if cfg.IgnoredWords, err = flags.GetStringArray("ignore-word"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("request-timeout") {
		if cfg.RequestTimeout, err = flags.GetDuration("request-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("robots") {
		if cfg.RespectRobots, err = flags.GetBool("robots"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("popular") {
		if cfg.PopularWordCount, err = flags.GetInt("popular"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output") {
		if cfg.ResultPath, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("profile") {
		if cfg.ProfileOutputPath, err = flags.GetString("profile"); err != nil {
			return nil, err
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	// Positional arguments replace the start pages of the config file
	if len(args) > 0 {
		cfg.Seeds = args
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// The built-in agent string is replaced by one naming this release.
	if cfg.UserAgent == config.DefaultUserAgent {
		cfg.UserAgent = userAgent()
	}

	return cfg, nil
}

// newFetcher builds the HTTP fetcher described by cfg.
func newFetcher(cfg *config.Config) (*fetcher.HTTPFetcher, error) {
	ignoredWords, err := crawler.CompilePatterns(cfg.IgnoredWords)
	if err != nil {
		return nil, err
	}

	return fetcher.New(
		fetcher.WithTimeout(cfg.RequestTimeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithProxy(cfg.ProxyAddress),
		fetcher.WithSites(cfg.FetcherSites()),
		fetcher.WithCrawlDelay(cfg.CrawlDelay),
		fetcher.WithRobots(cfg.RespectRobots),
		fetcher.WithIgnoredWords(ignoredWords),
	)
}

// runCrawl executes the crawl and delivers its result.
// The report is written even when every seed failed, so the user sees
// which URLs could not be fetched; the seed error is returned afterwards.
func runCrawl(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	f, err := newFetcher(cfg)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}
	return runCrawlWith(ctx, cfg, f, stdout, logger)
}

// runCrawlWith is runCrawl with the page fetcher supplied by the caller.
func runCrawlWith(ctx context.Context, cfg *config.Config, f crawler.Fetcher, stdout io.Writer, logger *slog.Logger) error {
	ignoredURLs, err := crawler.CompilePatterns(cfg.IgnoredURLs)
	if err != nil {
		return err
	}

	prof := profiler.New()
	c := crawler.New(
		profiler.WrapFetcher(f, prof),
		crawler.WithParallelism(cfg.Parallelism),
		crawler.WithLogger(logger),
	)

	startedAt := time.Now()
	opts := crawler.Options{
		MaxDepth:       cfg.MaxDepth,
		IgnorePatterns: ignoredURLs,
	}
	if cfg.Timeout > 0 {
		opts.Deadline = startedAt.Add(cfg.Timeout)
	}

	var res *crawler.Result
	crawlErr := prof.Time(profiler.OpCrawl, func() error {
		var err error
		res, err = c.CrawlAll(ctx, cfg.Seeds, opts)
		return err
	})
	if res == nil {
		return crawlErr
	}

	result := newCrawlResult(cfg, startedAt, res)

	// The result is delivered even after an interrupt.
	delivery := pipeline.DefaultPipeline(pipeline.DefaultPipelineConfig{
		ReportPath:  cfg.ResultPath,
		Stdout:      stdout,
		NewWriter:   func(w io.Writer) report.Writer { return newReportWriter(cfg, w) },
		ProfilePath: cfg.ProfileOutputPath,
		Profiler:    prof,
		SaveToDB:    cfg.SaveToDB,
		DBDir:       cfg.DBDir,
		Logger:      logger,
	})
	if err := delivery.Execute(context.WithoutCancel(ctx), result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if crawlErr != nil {
		return crawlErr
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	return nil
}

// newCrawlResult converts the crawler outcome into the stored result model.
func newCrawlResult(cfg *config.Config, startedAt time.Time, res *crawler.Result) *model.CrawlResult {
	result := model.NewCrawlResult(cfg.Seeds, startedAt, cfg.MaxDepth)
	result.Elapsed = res.Stats.Elapsed
	result.URLsVisited = res.Stats.URLsVisited
	result.VisitedURLs = res.Visited
	result.FetchErrors = res.Failed
	result.TimedOut = res.Stats.StoppedEarly
	result.SetWordCounts(res.WordCounts, cfg.PopularWordCount)
	return result
}

// newReportWriter returns the writer for the selected report format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}
