// Package profiler records how often and how long named operations run.
//
// A Profiler is shared by the whole run. Fetcher wraps a crawler.Fetcher so
// every page fetch is timed without the crawler knowing about it; other call
// sites use Profiler.Time directly. WriteTo renders the collected data as
// plain text, one line per operation.
package profiler
