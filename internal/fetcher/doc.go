// Package fetcher retrieves web pages and turns them into word counts and
// links for the crawler.
//
// # Components
//
//   - HTTPFetcher: implements crawler.Fetcher over net/http
//   - Parser: extracts words and links from HTML
//   - RobotsAgent: optional robots.txt checks with a per-host cache
//
// Everything a polite crawler needs at the HTTP level lives here: request
// pacing, robots.txt, body size limits, content decoding and per-site
// cookies or headers. The crawler core only sees crawler.FetchResult values
// and *crawler.FetchError failures.
//
// # Usage
//
//	f, err := fetcher.New(
//		fetcher.WithUserAgent("wordcrawler/1.0"),
//		fetcher.WithCrawlDelay(500*time.Millisecond),
//		fetcher.WithRobots(true),
//	)
//	result, err := f.Fetch(ctx, "https://example.com/")
package fetcher
