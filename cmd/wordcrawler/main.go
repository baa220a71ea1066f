// Package main provides the entry point for the wordcrawler CLI.
//
// wordcrawler crawls web pages from one or more start URLs, follows links
// up to a depth limit and within a deadline, and counts every word it sees.
//
// Usage:
//
//	wordcrawler crawl <url>...
//	wordcrawler history [url]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
