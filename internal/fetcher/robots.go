package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// defaultRobotsTTL is how long fetched rules are reused.
const defaultRobotsTTL = 30 * time.Minute

// RobotsAgent answers robots.txt questions with a per-host cache.
//
// Design decision: lookups for the same host are collapsed with
// singleflight. A crawl typically discovers dozens of links to a new host at
// once, and without it every one of those tasks would download the same
// robots.txt.
type RobotsAgent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]robotsEntry

	group singleflight.Group
}

type robotsEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// NewRobotsAgent creates an agent that fetches robots.txt with client.
func NewRobotsAgent(client *http.Client, userAgent string) *RobotsAgent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsAgent{
		client:    client,
		userAgent: userAgent,
		ttl:       defaultRobotsTTL,
		now:       time.Now,
		cache:     make(map[string]robotsEntry),
	}
}

// Allowed reports whether target may be fetched.
// Errors fetching or parsing robots.txt allow the URL.
func (a *RobotsAgent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}

	rules, err := a.rules(ctx, target)
	if err != nil {
		return true
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return rules.TestAgent(path, a.userAgent)
}

func (a *RobotsAgent) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	key := strings.ToLower(target.Scheme + "://" + target.Host)

	if rules, ok := a.cached(key); ok {
		return rules, nil
	}

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		// A flight that finished between the lookup above and Do.
		if rules, ok := a.cached(key); ok {
			return rules, nil
		}
		rules, err := a.download(ctx, key+"/robots.txt")
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.cache[key] = robotsEntry{fetched: a.now(), rules: rules}
		a.mu.Unlock()
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

func (a *RobotsAgent) cached(key string) (*robotstxt.RobotsData, bool) {
	a.mu.RLock()
	entry, ok := a.cache[key]
	a.mu.RUnlock()
	if !ok || a.now().Sub(entry.fetched) >= a.ttl {
		return nil, false
	}
	return entry.rules, true
}

func (a *RobotsAgent) download(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// FromResponse maps 4xx to allow-all and 5xx to disallow-all.
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
