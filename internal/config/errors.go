package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeed is returned when neither arguments nor the configuration file
	// provide a start page.
	ErrNoSeed = errors.New("no start page specified: pass a URL or set startPages in the config file")

	// ErrInvalidSeed is returned when a start page is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid start page: must be an absolute http or https URL")

	// ErrInvalidDepth is returned when the depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidTimeout is returned when the crawl timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidParallelism is returned when the parallelism is not positive.
	ErrInvalidParallelism = errors.New("invalid parallelism: must be positive")

	// ErrInvalidPopularWordCount is returned when the popular word count is negative.
	ErrInvalidPopularWordCount = errors.New("invalid popular word count: must be non-negative")

	// ErrInvalidRequestTimeout is returned when the request timeout is not positive.
	// A zero request timeout would make every fetch fail at once.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
