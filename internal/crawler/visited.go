package crawler

import (
	"net/url"
	"sort"
	"strings"
	"sync"
)

// VisitedSet records the URLs claimed during one crawl.
// Entries are never removed. It is safe for concurrent use.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet creates an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Claim marks pageURL as visited and reports whether this call was the one
// that added it. When several goroutines claim the same URL at once exactly
// one of them gets true.
//
// The membership test and the insert happen under one lock; doing them as
// two separate calls would let two tasks both see "not visited" and fetch
// the same page twice.
func (v *VisitedSet) Claim(pageURL string) bool {
	key := NormalizeURL(pageURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[key]; ok {
		return false
	}
	v.urls[key] = struct{}{}
	return true
}

// Contains reports whether pageURL has been claimed.
func (v *VisitedSet) Contains(pageURL string) bool {
	key := NormalizeURL(pageURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[key]
	return ok
}

// Len returns the number of claimed URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// URLs returns the claimed URLs in lexical order.
func (v *VisitedSet) URLs() []string {
	v.mu.Lock()
	out := make([]string, 0, len(v.urls))
	for u := range v.urls {
		out = append(out, u)
	}
	v.mu.Unlock()

	sort.Strings(out)
	return out
}

// NormalizeURL returns the form of pageURL used as the visited-set key.
//
// Design decision: we normalize because the same page is often linked in
// several spellings:
//  1. The fragment (#anchor) never changes the document
//  2. Scheme and host are case-insensitive
//  3. "http://host" and "http://host/" are the same resource
//
// Strings that do not parse as URLs are used as they are.
func NormalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Host != "" && u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}

	return u.String()
}
