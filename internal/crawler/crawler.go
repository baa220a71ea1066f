package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Crawler runs word-counting crawls with a given Fetcher.
// A Crawler holds no per-crawl state and may run several crawls at once.
type Crawler struct {
	// fetcher retrieves and parses pages.
	fetcher Fetcher

	// parallelism bounds the number of fetches in flight.
	parallelism int

	// now is the clock used for deadline checks.
	now func() time.Time

	// logger receives fetch failures and crawl summaries.
	logger *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithParallelism sets the maximum number of concurrent fetches.
// Values below 1 select runtime.NumCPU().
func WithParallelism(n int) Option {
	return func(c *Crawler) {
		c.parallelism = n
	}
}

// WithClock replaces time.Now for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler that fetches pages with fetcher.
func New(fetcher Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher: fetcher,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.parallelism < 1 {
		c.parallelism = runtime.NumCPU()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Options are the per-crawl parameters.
type Options struct {
	// MaxDepth is the number of link hops still allowed, counting the seed.
	// 0 crawls nothing, 1 crawls only the seed.
	MaxDepth int

	// Deadline is the instant after which no new fetch is started.
	// The zero value means no deadline.
	Deadline time.Time

	// IgnorePatterns are URL patterns built by CompilePatterns.
	// A URL fully matching any of them is never fetched.
	IgnorePatterns []*regexp.Regexp
}

// Stats summarizes a finished crawl.
type Stats struct {
	// URLsVisited is the number of distinct URLs claimed.
	URLsVisited int

	// PagesFetched is the number of calls made to the Fetcher.
	PagesFetched int

	// FetchErrors is the number of URLs whose fetch failed.
	FetchErrors int

	// StoppedEarly is true when at least one task stopped because the
	// deadline passed or the context was cancelled.
	StoppedEarly bool

	// Elapsed is the wall-clock time of the crawl.
	Elapsed time.Duration
}

// Result is the outcome of a crawl.
type Result struct {
	// WordCounts maps every word seen to its total number of occurrences.
	WordCounts map[string]int

	// Visited lists the claimed URLs in normalized form, sorted.
	Visited []string

	// Failed lists the URLs whose fetch failed, sorted.
	Failed []string

	// Stats summarizes the crawl.
	Stats Stats
}

// Crawl crawls from a single seed URL. See CrawlAll.
func (c *Crawler) Crawl(ctx context.Context, seed string, opts Options) (*Result, error) {
	return c.CrawlAll(ctx, []string{seed}, opts)
}

// CrawlAll crawls from several seed URLs at once. All root tasks share one
// word-count accumulator and one visited set, so a page reachable from two
// seeds is still counted once.
//
// The result is always returned when the options are valid, even when the
// deadline expired or pages failed. The crawl as a whole fails with
// ErrSeedFailed only when every seed that was attempted could not be fetched.
func (c *Crawler) CrawlAll(ctx context.Context, seeds []string, opts Options) (*Result, error) {
	if c.fetcher == nil {
		return nil, ErrNoFetcher
	}
	if len(seeds) == 0 {
		return nil, ErrNoSeed
	}
	if opts.MaxDepth < 0 {
		return nil, ErrNegativeDepth
	}

	state := &crawlState{
		fetcher:  c.fetcher,
		now:      c.now,
		deadline: opts.Deadline,
		ignore:   opts.IgnorePatterns,
		slots:    semaphore.NewWeighted(int64(c.parallelism)),
		counts:   NewWordCounts(),
		visited:  NewVisitedSet(),
		failures: make(map[string]error),
	}

	c.logger.Info("starting crawl",
		"seeds", seeds,
		"maxDepth", opts.MaxDepth,
		"deadline", opts.Deadline,
		"parallelism", c.parallelism,
	)

	start := time.Now()

	var g errgroup.Group
	for _, seed := range seeds {
		root := task{url: seed, depth: opts.MaxDepth, state: state}
		g.Go(func() error {
			root.run(ctx)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks never return errors

	result := c.buildResult(state, time.Since(start))

	c.logger.Info("crawl finished",
		"urlsVisited", result.Stats.URLsVisited,
		"words", len(result.WordCounts),
		"fetchErrors", result.Stats.FetchErrors,
		"stoppedEarly", result.Stats.StoppedEarly,
		"elapsed", result.Stats.Elapsed,
	)

	if err := seedFailure(state, seeds); err != nil {
		return result, err
	}
	return result, nil
}

// buildResult copies the shared state into a Result once every task returned.
func (c *Crawler) buildResult(state *crawlState, elapsed time.Duration) *Result {
	state.failMu.Lock()
	failed := make([]string, 0, len(state.failures))
	for u, err := range state.failures {
		failed = append(failed, u)
		c.logger.Debug("fetch failed", "url", u, "error", err)
	}
	state.failMu.Unlock()
	sort.Strings(failed)

	visited := state.visited.URLs()

	return &Result{
		WordCounts: state.counts.Snapshot(),
		Visited:    visited,
		Failed:     failed,
		Stats: Stats{
			URLsVisited:  len(visited),
			PagesFetched: int(state.fetched.Load()),
			FetchErrors:  len(failed),
			StoppedEarly: state.deadlineHit.Load(),
			Elapsed:      elapsed,
		},
	}
}

// seedFailure returns ErrSeedFailed when every seed that was claimed failed.
// Seeds skipped by a stop condition are not failures.
func seedFailure(state *crawlState, seeds []string) error {
	var errs []error
	attempted := 0
	for _, seed := range seeds {
		err := state.failure(seed)
		if err != nil {
			errs = append(errs, err)
			attempted++
			continue
		}
		if state.visited.Contains(seed) {
			attempted++
		}
	}

	if attempted == 0 || len(errs) < attempted {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSeedFailed, errors.Join(errs...))
}
