package model

import "time"

// RunSummary describes a stored crawl run without its word list.
// This is used for displaying history without loading every word.
type RunSummary struct {
	// ID is the run ID.
	ID string `json:"id"`

	// Seeds are the start pages of the run.
	Seeds []string `json:"seeds"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`

	// Elapsed is the duration of the run.
	Elapsed time.Duration `json:"elapsedNanos"`

	// MaxDepth is the depth budget of the run.
	MaxDepth int `json:"maxDepth"`

	// URLsVisited is the number of distinct URLs claimed.
	URLsVisited int `json:"urlsVisited"`

	// DistinctWords is the number of different words counted.
	DistinctWords int `json:"distinctWords"`

	// TotalWords is the sum of all word counts.
	TotalWords int `json:"totalWords"`

	// TimedOut is true when the deadline cut the run short.
	TimedOut bool `json:"timedOut"`
}

// Summary returns the RunSummary of r.
func (r *CrawlResult) Summary() RunSummary {
	return RunSummary{
		ID:            r.ID,
		Seeds:         r.Seeds,
		StartedAt:     r.StartedAt,
		Elapsed:       r.Elapsed,
		MaxDepth:      r.MaxDepth,
		URLsVisited:   r.URLsVisited,
		DistinctWords: len(r.WordCounts),
		TotalWords:    r.TotalWords(),
		TimedOut:      r.TimedOut,
	}
}
