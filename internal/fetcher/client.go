package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects bounds redirect chains.
const maxRedirects = 10

// Site holds credentials sent only to one host.
type Site struct {
	// Cookie is a raw cookie string, e.g. "session=abc; theme=dark".
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string
}

// newHTTPClient builds the client used for pages and robots.txt.
// When proxyAddress is set every connection goes through that SOCKS5 proxy.
func newHTTPClient(timeout time.Duration, proxyAddress string, sites map[string]Site) (*http.Client, error) {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// We ask for gzip, deflate and br ourselves and decode in readBody.
		DisableCompression: true,
	}

	if proxyAddress != "" {
		if !isValidProxyAddress(proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		// nil auth: local SOCKS proxies normally do not require it
		dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = contextDialer(dialer)
	}

	var rt http.RoundTripper = transport
	if len(sites) > 0 {
		rt = &siteTransport{base: transport, sites: normalizeSites(sites)}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// contextDialer adapts a proxy.Dialer to http.Transport.DialContext.
// The SOCKS5 dialer from x/net implements proxy.ContextDialer; the fallback
// only exists for dialers that do not.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)

		go func() {
			conn, err := d.Dial(network, address)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// isValidProxyAddress checks that address is "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

func normalizeSites(sites map[string]Site) map[string]Site {
	out := make(map[string]Site, len(sites))
	for host, site := range sites {
		out[strings.ToLower(strings.TrimSpace(host))] = site
	}
	return out
}

// siteTransport adds a site's cookie and headers to requests for that host.
// Doing it in the transport means redirects to the same host carry them too,
// and redirects to other hosts do not.
type siteTransport struct {
	base  http.RoundTripper
	sites map[string]Site
}

// RoundTrip implements http.RoundTripper.
func (t *siteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	site, ok := t.sites[strings.ToLower(req.URL.Hostname())]
	if !ok {
		site, ok = t.sites[strings.ToLower(req.URL.Host)]
	}
	if !ok {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())

	if site.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+site.Cookie)
		} else {
			clone.Header.Set("Cookie", site.Cookie)
		}
	}
	for key, value := range site.Headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
