package crawler

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// crawlState is everything the tasks of one crawl share.
// Only counts, visited and the bookkeeping fields below the marker are
// mutated; the rest is read-only for the lifetime of the crawl.
type crawlState struct {
	fetcher  Fetcher
	now      func() time.Time
	deadline time.Time
	ignore   []*regexp.Regexp
	slots    *semaphore.Weighted

	counts  *WordCounts
	visited *VisitedSet

	// bookkeeping, never read by a task's stop/continue decision
	fetched     atomic.Int64
	deadlineHit atomic.Bool
	failMu      sync.Mutex
	failures    map[string]error
}

// expired reports whether new work may no longer start.
func (s *crawlState) expired(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if s.deadline.IsZero() {
		return false
	}
	return !s.now().Before(s.deadline)
}

// acquire takes one parallelism slot and re-checks expiry once it has it,
// since the wait for a slot can outlast the deadline. It reports false when
// the task must stop; the slot is then not held.
func (s *crawlState) acquire(ctx context.Context) bool {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.deadlineHit.Store(true)
		return false
	}
	if s.expired(ctx) {
		s.slots.Release(1)
		s.deadlineHit.Store(true)
		return false
	}
	return true
}

// fetchHeld calls the Fetcher and gives back the slot taken by acquire.
func (s *crawlState) fetchHeld(ctx context.Context, pageURL string) (*FetchResult, error) {
	defer s.slots.Release(1)
	s.fetched.Add(1)
	return s.fetcher.Fetch(ctx, pageURL)
}

// ignored matches the URL as written and in its normalized form, so a
// fragment or default-port variant cannot slip past a pattern.
func (s *crawlState) ignored(pageURL string) bool {
	return MatchesAny(s.ignore, pageURL) || MatchesAny(s.ignore, NormalizeURL(pageURL))
}

func (s *crawlState) recordFailure(pageURL string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if _, ok := s.failures[pageURL]; !ok {
		s.failures[pageURL] = err
	}
}

func (s *crawlState) failure(pageURL string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failures[NormalizeURL(pageURL)]
}

// task is one node of the crawl tree. It is a plain value: a child is built
// directly from its parent with the discovered link and one less depth.
type task struct {
	url   string
	depth int
	state *crawlState
}

// run processes the task's URL and blocks until its whole subtree is done.
func (t task) run(ctx context.Context) {
	s := t.state

	if t.depth <= 0 {
		return
	}
	if s.expired(ctx) {
		s.deadlineHit.Store(true)
		return
	}
	if s.ignored(t.url) {
		return
	}
	// Cheap early exit for links that are already taken; the claim below
	// stays the authoritative check.
	if s.visited.Contains(t.url) {
		return
	}

	// The slot is released before any child is started, so a parent
	// waiting on its children never holds a slot the children need.
	if !s.acquire(ctx) {
		return
	}
	if !s.visited.Claim(t.url) {
		s.slots.Release(1)
		return
	}
	result, err := s.fetchHeld(ctx, t.url)
	if err != nil {
		s.recordFailure(NormalizeURL(t.url), err)
		return
	}
	if result == nil {
		return
	}

	s.counts.Merge(result.WordCounts)

	// Children at depth 0 would stop on their first check.
	if t.depth == 1 {
		return
	}

	var g errgroup.Group
	for _, link := range result.Links {
		child := task{url: link, depth: t.depth - 1, state: s}
		g.Go(func() error {
			child.run(ctx)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // children never return errors
}
