package profiler

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/nao1215/wordcrawler/internal/crawler"
)

// Operation names used by this module.
const (
	// OpFetch is a single crawler.Fetcher call.
	OpFetch = "fetch"
	// OpCrawl is a complete crawl.
	OpCrawl = "crawl"
)

// Stat is the collected data for one operation.
type Stat struct {
	// Name identifies the operation.
	Name string

	// Calls is the number of completed calls.
	Calls int

	// Errors is the number of calls that returned an error.
	Errors int

	// Total is the summed duration of all calls.
	Total time.Duration

	// Max is the longest single call.
	Max time.Duration
}

// Mean returns the average call duration.
func (s Stat) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// Profiler aggregates call timings. It is safe for concurrent use.
type Profiler struct {
	now     func() time.Time
	started time.Time

	mu    sync.Mutex
	stats map[string]*Stat
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Profiler.
func New(opts ...Option) *Profiler {
	p := &Profiler{
		now:   time.Now,
		stats: make(map[string]*Stat),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.started = p.now()
	return p
}

// Record adds one call of name that took d.
func (p *Profiler) Record(name string, d time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stats[name]
	if !ok {
		s = &Stat{Name: name}
		p.stats[name] = s
	}
	s.Calls++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
	if err != nil {
		s.Errors++
	}
}

// Time runs fn and records it under name.
func (p *Profiler) Time(name string, fn func() error) error {
	start := p.now()
	err := fn()
	p.Record(name, p.now().Sub(start), err)
	return err
}

// Stats returns a copy of the collected data ordered by total time, longest first.
func (p *Profiler) Stats() []Stat {
	p.mu.Lock()
	out := make([]Stat, 0, len(p.stats))
	for _, s := range p.stats {
		out = append(out, *s)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// WriteTo writes a text profile to w. It implements io.WriterTo.
func (p *Profiler) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	fmt.Fprintf(cw, "Run at %s\n", p.started.Format(time.RFC1123))
	for _, s := range p.Stats() {
		fmt.Fprintf(cw, "%s took %s over %d call(s) (mean %s, max %s, errors %d)\n",
			s.Name, s.Total, s.Calls, s.Mean(), s.Max, s.Errors)
	}
	fmt.Fprintln(cw)

	return cw.n, cw.err
}

// countingWriter remembers the bytes written and the first error.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(b)
	c.n += int64(n)
	c.err = err
	return n, err
}

// Fetcher is a crawler.Fetcher that records every call under OpFetch.
type Fetcher struct {
	next     crawler.Fetcher
	profiler *Profiler
}

// WrapFetcher returns next with profiling added.
func WrapFetcher(next crawler.Fetcher, p *Profiler) *Fetcher {
	return &Fetcher{next: next, profiler: p}
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*crawler.FetchResult, error) {
	var result *crawler.FetchResult
	err := f.profiler.Time(OpFetch, func() error {
		var err error
		result, err = f.next.Fetch(ctx, pageURL)
		return err
	})
	return result, err
}
