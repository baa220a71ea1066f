// Package pipeline delivers a finished crawl result through a sequence of steps.
//
// After the crawler returns, the result is written as a report and the
// timing profile is appended to its file. With saving enabled the run is
// then stored in the database. Each of these is a Step.
//
// Design decision: Delivery is a pipeline rather than a fixed function so
// that the crawl command only decides which steps apply (for example, no
// save step with --no-save) while step ordering and cancellation live in
// one place.
package pipeline
