package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/wordcrawler/internal/crawler"
	"github.com/nao1215/wordcrawler/internal/fetcher"
)

// Default configuration values.
const (
	// DefaultMaxDepth lets a crawl follow links ten hops away from a seed.
	// Word counts stop changing noticeably well before that on most sites.
	DefaultMaxDepth = 10

	// DefaultTimeout is the crawl deadline. No new page is fetched once it
	// has passed; pages already being fetched still finish.
	DefaultTimeout = 30 * time.Second

	// DefaultPopularWordCount is how many words the report ranks.
	DefaultPopularWordCount = 10

	// DefaultRequestTimeout bounds a single HTTP request.
	DefaultRequestTimeout = fetcher.DefaultTimeout

	// DefaultMaxBodySize limits the decoded size of one page.
	DefaultMaxBodySize = fetcher.DefaultMaxBodySize

	// DefaultUserAgent identifies wordcrawler in HTTP requests.
	DefaultUserAgent = fetcher.DefaultUserAgent

	// AppName is the application name used for XDG directory paths.
	AppName = "wordcrawler"
)

// Config holds all configuration options for wordcrawler.
// This struct is populated from the configuration file and CLI flags and
// passed through the application rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Seeds are the start pages of the crawl. Each must be an absolute
	// http or https URL.
	Seeds []string

	// MaxDepth is the number of link hops allowed, counting the seed.
	// 0 crawls nothing and 1 crawls only the seeds.
	MaxDepth int

	// Timeout is the crawl deadline measured from the start of the crawl.
	// 0 disables the deadline.
	Timeout time.Duration

	// Parallelism is the maximum number of pages fetched at once.
	Parallelism int

	// IgnoredURLs are regular expressions; a URL fully matching one is not crawled.
	IgnoredURLs []string

	// IgnoredWords are regular expressions; a word fully matching one is not counted.
	IgnoredWords []string

	// PopularWordCount is how many words the report ranks. 0 ranks all.
	PopularWordCount int

	// ProfileOutputPath is the file the timing profile is appended to.
	// Empty means the profile is not written.
	ProfileOutputPath string

	// ResultPath is the file the report is written to instead of stdout.
	// Directories are created automatically if they don't exist.
	ResultPath string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration

	// CrawlDelay is the minimum interval between two HTTP requests.
	// 0 disables pacing.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum decoded response size in bytes.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// RespectRobots enables robots.txt checks.
	RespectRobots bool

	// Sites holds per-host cookies and headers from the configuration file.
	Sites map[string]SiteConfig

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .wordcrawler in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// DBDir is the directory of the result database.
	// Defaults to XDG data directory (~/.local/share/wordcrawler on Linux).
	DBDir string

	// SaveToDB stores the result in the database after the crawl.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., depth, timeouts).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:         DefaultMaxDepth,
		Timeout:          DefaultTimeout,
		Parallelism:      runtime.NumCPU(),
		PopularWordCount: DefaultPopularWordCount,
		RequestTimeout:   DefaultRequestTimeout,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
		Sites:            make(map[string]SiteConfig),
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
	}
}

// XDGDataDir returns the XDG data directory for wordcrawler.
// On Linux: ~/.local/share/wordcrawler
// On macOS: ~/Library/Application Support/wordcrawler
// On Windows: %LOCALAPPDATA%\wordcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for wordcrawler.
// On Linux: ~/.config/wordcrawler
// On macOS: ~/Library/Application Support/wordcrawler
// On Windows: %APPDATA%\wordcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// We return the first error found because fixing one error often makes
// others irrelevant.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for _, seed := range c.Seeds {
		if !isCrawlableURL(seed) {
			return fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
		}
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	// 0 is allowed and means no deadline
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.Parallelism <= 0 {
		return ErrInvalidParallelism
	}

	if c.PopularWordCount < 0 {
		return ErrInvalidPopularWordCount
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if _, err := crawler.CompilePatterns(c.IgnoredURLs); err != nil {
		return fmt.Errorf("ignored URL: %w", err)
	}
	if _, err := crawler.CompilePatterns(c.IgnoredWords); err != nil {
		return fmt.Errorf("ignored word: %w", err)
	}

	return nil
}

// FetcherSites converts Sites to the form the fetcher expects.
func (c *Config) FetcherSites() map[string]fetcher.Site {
	if len(c.Sites) == 0 {
		return nil
	}
	out := make(map[string]fetcher.Site, len(c.Sites))
	for host, site := range c.Sites {
		out[host] = fetcher.Site{Cookie: site.Cookie, Headers: site.Headers}
	}
	return out
}

func isCrawlableURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
