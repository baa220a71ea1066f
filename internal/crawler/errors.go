package crawler

import (
	"errors"
	"fmt"
)

// Crawl errors.
var (
	// ErrNoFetcher is returned when a Crawler was built without a Fetcher.
	ErrNoFetcher = errors.New("crawler has no fetcher")

	// ErrNoSeed is returned when a crawl is started without any seed URL.
	ErrNoSeed = errors.New("no seed URL")

	// ErrNegativeDepth is returned when the depth budget is negative.
	ErrNegativeDepth = errors.New("invalid depth: must be non-negative")

	// ErrSeedFailed is returned when no seed page could be fetched.
	// The crawl result is still returned alongside it.
	ErrSeedFailed = errors.New("seed could not be fetched")

	// ErrInvalidPattern is returned by CompilePatterns for a malformed pattern.
	ErrInvalidPattern = errors.New("invalid URL pattern")
)

// FetchError reports that a page could not be retrieved or parsed.
//
// Design decision: the task that receives a FetchError treats it as a stop
// condition for its own URL. It does not merge anything, does not start
// children and does not pass the error to its parent, so one broken page
// never aborts the rest of the crawl.
type FetchError struct {
	// URL is the page that failed.
	URL string

	// StatusCode is the HTTP status, if a response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}
