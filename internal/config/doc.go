// Package config provides configuration structures and utilities for wordcrawler.
// It defines the crawl settings, fetch behavior and report preferences, and
// loads the optional YAML configuration file.
package config
