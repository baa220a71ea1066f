// Package log builds the slog loggers of wordcrawler.
//
// Every logger masks sensitive attributes before they are written:
// request headers such as Cookie and Authorization, values that look like
// credentials, and passwords embedded in URLs such as proxy addresses.
// Per-site cookies and headers from the configuration file reach debug
// logs, so masking also applies in verbose mode.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", pageURL, "cookie", cookie) // cookie is masked
package log
