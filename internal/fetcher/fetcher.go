package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/wordcrawler/internal/crawler"
)

// Defaults for HTTPFetcher.
const (
	// DefaultTimeout bounds one request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps a decoded page at 5MB.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent identifies the crawler to site operators.
	DefaultUserAgent = "wordcrawler/1.0 (+https://github.com/nao1215/wordcrawler)"
)

// HTTPFetcher fetches pages over HTTP and parses them.
// It implements crawler.Fetcher and is safe for concurrent use.
type HTTPFetcher struct {
	// client performs page and robots.txt requests.
	client *http.Client

	// timeout is used when building the default client.
	timeout time.Duration

	// userAgent is the User-Agent header.
	userAgent string

	// maxBodySize limits the decoded body size.
	maxBodySize int64

	// proxyAddress is an optional SOCKS5 proxy in host:port form.
	proxyAddress string

	// sites maps host names to credentials for that host.
	sites map[string]Site

	// crawlDelay is the minimum interval between two requests.
	// 0 disables pacing.
	crawlDelay time.Duration

	// limiter paces requests across all goroutines.
	limiter *rate.Limiter

	// respectRobots enables robots.txt checks.
	respectRobots bool

	// robots is set when respectRobots is true.
	robots *RobotsAgent

	// parser extracts words and links.
	parser *Parser

	// ignoredWords is handed to the parser.
	ignoredWords []*regexp.Regexp
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the HTTP client. Proxy and site options are then
// the caller's responsibility.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum decoded body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at host:port.
func WithProxy(address string) Option {
	return func(f *HTTPFetcher) {
		f.proxyAddress = address
	}
}

// WithSites sets per-host cookies and headers.
func WithSites(sites map[string]Site) Option {
	return func(f *HTTPFetcher) {
		f.sites = sites
	}
}

// WithCrawlDelay sets the minimum interval between requests.
func WithCrawlDelay(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.crawlDelay = d
	}
}

// WithRobots enables or disables robots.txt checks.
func WithRobots(respect bool) Option {
	return func(f *HTTPFetcher) {
		f.respectRobots = respect
	}
}

// WithIgnoredWords sets full-match patterns for words that are not counted.
func WithIgnoredWords(patterns []*regexp.Regexp) Option {
	return func(f *HTTPFetcher) {
		f.ignoredWords = patterns
	}
}

// New creates an HTTPFetcher.
func New(opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		client, err := newHTTPClient(f.timeout, f.proxyAddress, f.sites)
		if err != nil {
			return nil, err
		}
		f.client = client
	}

	if f.crawlDelay > 0 {
		f.limiter = rate.NewLimiter(rate.Every(f.crawlDelay), 1)
	}
	if f.respectRobots {
		f.robots = NewRobotsAgent(f.client, f.userAgent)
	}
	f.parser = NewParser(f.ignoredWords)

	return f, nil
}

// Fetch implements crawler.Fetcher.
// Every failure is returned as *crawler.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*crawler.FetchResult, error) {
	page, err := f.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return &crawler.FetchResult{WordCounts: page.WordCounts, Links: page.Links}, nil
}

// Page is a fetched and parsed document.
type Page struct {
	ParseResult

	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP status.
	StatusCode int

	// ContentType is the Content-Type header.
	ContentType string
}

// FetchPage fetches and parses pageURL, keeping response metadata.
func (f *HTTPFetcher) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	fail := func(status int, err error) (*Page, error) {
		return nil, &crawler.FetchError{URL: pageURL, StatusCode: status, Err: err}
	}

	target, err := url.Parse(pageURL)
	if err != nil {
		return fail(0, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return fail(0, fmt.Errorf("%w: %q", ErrUnsupportedScheme, target.Scheme))
	}

	if f.robots != nil && !f.robots.Allowed(ctx, target) {
		return fail(0, ErrDisallowed)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return fail(0, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, ErrUnexpectedStatus)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return fail(resp.StatusCode, fmt.Errorf("%w: %s", ErrNotHTML, contentType))
	}

	body, err := readBody(resp, f.maxBodySize)
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	content, err := utf8Reader(body, contentType)
	if err != nil {
		return fail(resp.StatusCode, err)
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	parsed, err := f.parser.Parse(content, finalURL)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("parse: %w", err))
	}

	return &Page{
		ParseResult: *parsed,
		URL:         pageURL,
		FinalURL:    finalURL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}, nil
}
