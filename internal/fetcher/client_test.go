package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// cookieRecorder remembers the last Cookie header a handler saw.
type cookieRecorder struct {
	mu     sync.Mutex
	cookie string
}

func (c *cookieRecorder) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookie = r.Header.Get("Cookie")
}

func (c *cookieRecorder) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookie
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:1080", true},
		{"[::1]:9050", true},
		{"127.0.0.1:65535", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:port", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()

			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestSiteTransportScopedToHost(t *testing.T) {
	t.Parallel()

	// other is reached as "localhost", the configured site is "127.0.0.1".
	var otherCookie cookieRecorder
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherCookie.record(r)
	}))
	t.Cleanup(other.Close)
	otherURL := strings.Replace(other.URL, "127.0.0.1", "localhost", 1)

	var siteCookie cookieRecorder
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siteCookie.record(r)
		http.Redirect(w, r, otherURL+"/landing", http.StatusFound)
	}))
	t.Cleanup(site.Close)

	client, err := newHTTPClient(5*time.Second, "", map[string]Site{
		" 127.0.0.1 ": {Cookie: "secret=1"},
	})
	if err != nil {
		t.Fatalf("newHTTPClient() error = %v", err)
	}

	resp, err := client.Get(site.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = resp.Body.Close()

	if got := siteCookie.get(); got != "secret=1" {
		t.Errorf("site cookie = %q, want secret=1", got)
	}
	if got := otherCookie.get(); got != "" {
		t.Errorf("cookie leaked across hosts: %q", got)
	}
}

func TestSiteTransportAppendsCookie(t *testing.T) {
	t.Parallel()

	var recorder cookieRecorder
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder.record(r)
	}))
	t.Cleanup(server.Close)

	rt := &siteTransport{base: http.DefaultTransport, sites: normalizeSites(map[string]Site{"127.0.0.1": {Cookie: "b=2"}})}
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Cookie", "a=1")

	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	_ = resp.Body.Close()

	if got := recorder.get(); got != "a=1; b=2" {
		t.Errorf("Cookie = %q, want %q", got, "a=1; b=2")
	}
	if req.Header.Get("Cookie") != "a=1" {
		t.Error("original request was modified")
	}
}

func TestReadBody(t *testing.T) {
	t.Parallel()

	respWith := func(encoding string, body []byte) *http.Response {
		resp := &http.Response{Header: make(http.Header), Body: io.NopCloser(bytes.NewReader(body))}
		if encoding != "" {
			resp.Header.Set("Content-Encoding", encoding)
		}
		return resp
	}

	t.Run("zlib wrapped deflate", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, _ = w.Write([]byte("zlib wrapped"))
		_ = w.Close()

		body, err := readBody(respWith("deflate", buf.Bytes()), 1024)
		if err != nil {
			t.Fatalf("readBody() error = %v", err)
		}
		if string(body) != "zlib wrapped" {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("raw deflate", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		_, _ = w.Write([]byte("deflated"))
		_ = w.Close()

		body, err := readBody(respWith("deflate", buf.Bytes()), 1024)
		if err != nil {
			t.Fatalf("readBody() error = %v", err)
		}
		if string(body) != "deflated" {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		t.Parallel()

		if _, err := readBody(respWith("gzip", []byte("not gzip")), 1024); err == nil {
			t.Error("readBody() error = nil, want error")
		}
	})

	t.Run("exact limit", func(t *testing.T) {
		t.Parallel()

		body, err := readBody(respWith("", []byte("12345")), 5)
		if err != nil {
			t.Fatalf("readBody() error = %v", err)
		}
		if string(body) != "12345" {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		t.Parallel()

		if _, err := readBody(respWith("", []byte("123456")), 5); !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("readBody() error = %v, want ErrBodyTooLarge", err)
		}
	})
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"":                          true,
		"text/html":                 true,
		"text/html; charset=utf-8":  true,
		"TEXT/HTML":                 true,
		"application/xhtml+xml":     true,
		"text/plain":                false,
		"application/json":          false,
		"image/png; something=else": false,
	}

	for contentType, want := range tests {
		if got := isHTML(contentType); got != want {
			t.Errorf("isHTML(%q) = %v, want %v", contentType, got, want)
		}
	}
}
