package config

import (
	"strings"
	"time"
)

// SiteConfig holds credentials for a single host.
// They are sent only to that host, never to hosts it links to.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .wordcrawler configuration file.
//
// Design decision: Numeric and boolean settings whose zero value is
// meaningful are pointers, so "maxDepth: 0" in the file is distinguishable
// from a missing key.
type File struct {
	// StartPages are the seed URLs.
	StartPages []string `yaml:"startPages,omitempty"`

	// IgnoredURLs are full-match URL patterns.
	IgnoredURLs []string `yaml:"ignoredUrls,omitempty"`

	// IgnoredWords are full-match word patterns.
	IgnoredWords []string `yaml:"ignoredWords,omitempty"`

	// Parallelism is the maximum number of concurrent fetches.
	Parallelism *int `yaml:"parallelism,omitempty"`

	// MaxDepth is the depth budget.
	MaxDepth *int `yaml:"maxDepth,omitempty"`

	// TimeoutSeconds is the crawl deadline in seconds.
	TimeoutSeconds *int `yaml:"timeoutSeconds,omitempty"`

	// PopularWordCount is the size of the popular-words ranking.
	PopularWordCount *int `yaml:"popularWordCount,omitempty"`

	// ProfileOutputPath is where the timing profile is appended.
	ProfileOutputPath string `yaml:"profileOutputPath,omitempty"`

	// ResultPath is where the report is written.
	ResultPath string `yaml:"resultPath,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// CrawlDelay is the minimum interval between requests, e.g. "500ms".
	CrawlDelay *time.Duration `yaml:"crawlDelay,omitempty"`

	// RequestTimeout bounds one HTTP request, e.g. "10s".
	RequestTimeout *time.Duration `yaml:"requestTimeout,omitempty"`

	// RespectRobots enables robots.txt checks.
	RespectRobots *bool `yaml:"respectRobots,omitempty"`

	// Proxy is a SOCKS5 proxy address in host:port form.
	Proxy string `yaml:"proxy,omitempty"`

	// Sites maps host names to their site-specific configurations.
	// Keys are host names without scheme or path (e.g., "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the configuration for host.
// Host names are compared case-insensitively.
func (cf *File) GetSiteConfig(host string) (SiteConfig, bool) {
	if site, ok := cf.Sites[host]; ok {
		return site, true
	}
	for name, site := range cf.Sites {
		if strings.EqualFold(name, host) {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// Apply copies every setting present in the file into cfg.
// Settings absent from the file leave cfg unchanged.
func (cf *File) Apply(cfg *Config) {
	if len(cf.StartPages) > 0 {
		cfg.Seeds = append([]string(nil), cf.StartPages...)
	}
	if len(cf.IgnoredURLs) > 0 {
		cfg.IgnoredURLs = append([]string(nil), cf.IgnoredURLs...)
	}
	if len(cf.IgnoredWords) > 0 {
		cfg.IgnoredWords = append([]string(nil), cf.IgnoredWords...)
	}
	if cf.Parallelism != nil {
		cfg.Parallelism = *cf.Parallelism
	}
	if cf.MaxDepth != nil {
		cfg.MaxDepth = *cf.MaxDepth
	}
	if cf.TimeoutSeconds != nil {
		cfg.Timeout = time.Duration(*cf.TimeoutSeconds) * time.Second
	}
	if cf.PopularWordCount != nil {
		cfg.PopularWordCount = *cf.PopularWordCount
	}
	if cf.ProfileOutputPath != "" {
		cfg.ProfileOutputPath = cf.ProfileOutputPath
	}
	if cf.ResultPath != "" {
		cfg.ResultPath = cf.ResultPath
	}
	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
	if cf.CrawlDelay != nil {
		cfg.CrawlDelay = *cf.CrawlDelay
	}
	if cf.RequestTimeout != nil {
		cfg.RequestTimeout = *cf.RequestTimeout
	}
	if cf.RespectRobots != nil {
		cfg.RespectRobots = *cf.RespectRobots
	}
	if cf.Proxy != "" {
		cfg.ProxyAddress = cf.Proxy
	}
	if len(cf.Sites) > 0 {
		if cfg.Sites == nil {
			cfg.Sites = make(map[string]SiteConfig, len(cf.Sites))
		}
		for host, site := range cf.Sites {
			cfg.Sites[host] = site
		}
	}
}
