package fetcher

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// readBody reads at most maxBytes of the decoded response body.
// A body that decodes to more than maxBytes is an error rather than being
// silently truncated, since a cut-off page would yield partial word counts.
func readBody(resp *http.Response, maxBytes int64) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl, err := deflateReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("deflate decode: %w", err)
		}
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, maxBytes)
	}
	return body, nil
}

// deflateReader decodes a "deflate" body. RFC 9110 defines it as zlib-wrapped
// data, but some servers send raw DEFLATE; those are recognised by a missing
// zlib header.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr[0], hdr[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// isZlibHeader reports whether cmf and flg form a valid zlib header:
// compression method 8 and a check value that makes the pair divisible by 31.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// utf8Reader converts body to UTF-8 using the charset from the Content-Type
// header, a <meta charset> tag, or content sniffing, in that order.
func utf8Reader(body []byte, contentType string) (io.Reader, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("charset: %w", err)
	}
	return r, nil
}

// isHTML reports whether a Content-Type header denotes an HTML document.
// An empty header is accepted; many small servers omit it.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
