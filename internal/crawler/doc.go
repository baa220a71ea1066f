// Package crawler implements the concurrent word-counting crawl.
//
// # Architecture
//
// A crawl is a tree of tasks. The root task is created for the seed URL and
// every task either stops immediately or fetches its page, merges the page's
// word counts into the shared WordCounts and starts one child task per
// discovered link. A task returns only after all of its children returned,
// so when the root returns the whole tree is done.
//
// There is no central queue or orchestrator loop. The only state shared by
// the tasks of one crawl is:
//   - WordCounts: word totals, merged under a lock
//   - VisitedSet: URLs already claimed, with an atomic Claim
//
// # Stop conditions
//
// Checked in this order at the start of every task:
//  1. depth budget exhausted
//  2. deadline reached (or the context cancelled)
//  3. URL fully matches an ignore pattern
//  4. URL already claimed by another task
//
// Tasks already running when the deadline passes are not interrupted; they
// finish their fetch, merge it and start children that stop on check 2.
//
// # Fetching
//
// Fetching and parsing is delegated to a Fetcher. A fetch error stops the
// task for that URL only; siblings and unrelated subtrees continue.
//
// # Usage
//
//	c := crawler.New(fetcher, crawler.WithParallelism(8))
//	result, err := c.Crawl(ctx, "https://example.com/", crawler.Options{
//		MaxDepth: 3,
//		Deadline: time.Now().Add(30 * time.Second),
//	})
package crawler
