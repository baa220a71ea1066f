// Package model defines the data structures shared by the crawler front end,
// the report writers and the result database.
//
// This package contains the following main types:
//   - CrawlResult: The outcome of one crawl run
//   - WordCount: One entry of the popular-words ranking
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The cmd, report and database packages all need these types,
// and none of them should import another just to share a struct.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
