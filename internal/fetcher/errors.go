package fetcher

import "errors"

// Fetch failure causes. They are wrapped in *crawler.FetchError.
var (
	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrBodyTooLarge is returned when the body exceeds the size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrDisallowed is returned when robots.txt forbids the URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)
