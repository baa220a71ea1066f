package crawler

import "context"

// Fetcher turns a URL into the words and links found on that page.
// Implementations must be safe for concurrent use; the crawler calls Fetch
// from many goroutines at once.
type Fetcher interface {
	// Fetch retrieves and parses the page at url.
	// Failures should be reported as *FetchError.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*FetchResult, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	return f(ctx, url)
}

// FetchResult is what a Fetcher found on one page.
type FetchResult struct {
	// WordCounts maps each word to its number of occurrences on the page.
	WordCounts map[string]int

	// Links are the outbound links in document order.
	Links []string
}
