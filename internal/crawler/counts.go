package crawler

import "sync"

// WordCounts accumulates word occurrences across every page of a crawl.
// It is safe for concurrent use.
//
// Design decision: one mutex around a plain map rather than sync.Map with
// per-word atomics because:
//  1. A page is merged in a single critical section, so no other task can
//     observe half of a page's counts
//  2. The read-modify-write of a word is trivially atomic under the lock
//  3. Page merges are short compared to the fetch that produced them
type WordCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewWordCounts creates an empty accumulator.
func NewWordCounts() *WordCounts {
	return &WordCounts{counts: make(map[string]int)}
}

// Add adds n occurrences of word. Empty words and non-positive counts are ignored.
func (w *WordCounts) Add(word string, n int) {
	if word == "" || n <= 0 {
		return
	}
	w.mu.Lock()
	w.counts[word] += n
	w.mu.Unlock()
}

// Merge adds every (word, count) pair of counts.
func (w *WordCounts) Merge(counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for word, n := range counts {
		if word == "" || n <= 0 {
			continue
		}
		w.counts[word] += n
	}
}

// Get returns the current count of word.
func (w *WordCounts) Get(word string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[word]
}

// Len returns the number of distinct words.
func (w *WordCounts) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.counts)
}

// Snapshot returns a copy of the current counts.
func (w *WordCounts) Snapshot() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.counts))
	for word, n := range w.counts {
		out[word] = n
	}
	return out
}
