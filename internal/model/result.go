package model

import (
	"time"

	"github.com/google/uuid"
)

// CrawlResult is the outcome of one crawl run.
//
// Design decision: WordCounts and URLsVisited keep the JSON names of the
// classic word-count crawler output so existing consumers can read our
// results; everything else is additional.
type CrawlResult struct {
	// ID uniquely identifies the run. It is also the database key.
	ID string `json:"id"`

	// Seeds are the start pages of the crawl.
	Seeds []string `json:"seeds"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"startedAt"`

	// Elapsed is the wall-clock duration of the crawl.
	Elapsed time.Duration `json:"elapsedNanos"`

	// MaxDepth is the depth budget the crawl ran with.
	MaxDepth int `json:"maxDepth"`

	// WordCounts maps each word to its total number of occurrences.
	WordCounts map[string]int `json:"wordCounts"`

	// PopularWords is the ranking of WordCounts, possibly truncated.
	// See PopularWords for the ordering.
	PopularWords []WordCount `json:"popularWords"`

	// URLsVisited is the number of distinct URLs claimed by the crawl.
	URLsVisited int `json:"urlsVisited"`

	// VisitedURLs lists the claimed URLs, sorted.
	VisitedURLs []string `json:"visitedUrls,omitempty"`

	// FetchErrors lists the URLs that could not be fetched, sorted.
	FetchErrors []string `json:"fetchErrors,omitempty"`

	// TimedOut is true when the deadline cut the crawl short.
	TimedOut bool `json:"timedOut"`
}

// NewCrawlResult creates a CrawlResult with a fresh ID.
func NewCrawlResult(seeds []string, startedAt time.Time, maxDepth int) *CrawlResult {
	return &CrawlResult{
		ID:         uuid.NewString(),
		Seeds:      append([]string(nil), seeds...),
		StartedAt:  startedAt,
		MaxDepth:   maxDepth,
		WordCounts: make(map[string]int),
	}
}

// SetWordCounts stores counts and recomputes the ranking with the top
// entries kept. top <= 0 keeps every word.
func (r *CrawlResult) SetWordCounts(counts map[string]int, top int) {
	r.WordCounts = counts
	r.PopularWords = PopularWords(counts, top)
}

// TotalWords returns the sum of all counts.
func (r *CrawlResult) TotalWords() int {
	total := 0
	for _, n := range r.WordCounts {
		total += n
	}
	return total
}
