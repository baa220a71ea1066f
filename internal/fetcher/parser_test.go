package fetcher

import (
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/nao1215/wordcrawler/internal/crawler"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func TestParserWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want map[string]int
	}{
		{
			name: "case folded",
			html: "<body>Go go GO</body>",
			want: map[string]int{"go": 3},
		},
		{
			name: "adjacent elements are separate words",
			html: "<body><p>one</p><p>two</p><span>three</span><span>four</span></body>",
			want: map[string]int{"one": 1, "two": 1, "three": 1, "four": 1},
		},
		{
			name: "punctuation splits",
			html: "<body>well-known, e.g. co.op; it's</body>",
			want: map[string]int{"well": 1, "known": 1, "e": 1, "g": 1, "co": 1, "op": 1, "it": 1, "s": 1},
		},
		{
			name: "digits are words",
			html: "<body>top 10 of 2024</body>",
			want: map[string]int{"top": 1, "10": 1, "of": 1, "2024": 1},
		},
		{
			name: "script style noscript template ignored",
			html: `<body>visible<script>a b c</script><style>.x{}</style><noscript>n</noscript><template>t</template></body>`,
			want: map[string]int{"visible": 1},
		},
		{
			name: "head ignored",
			html: "<html><head><title>Title Words</title><meta name=description content=meta></head><body>body</body></html>",
			want: map[string]int{"body": 1},
		},
		{
			name: "unicode letters",
			html: "<body>Straße ÉCOLE 日本</body>",
			want: map[string]int{"straße": 1, "école": 1, "日本": 1},
		},
		{
			name: "empty document",
			html: "",
			want: map[string]int{},
		},
		{
			name: "malformed html",
			html: "<body><p>open <b>bold <i>italic</p> tail",
			want: map[string]int{"open": 1, "bold": 1, "italic": 1, "tail": 1},
		},
	}

	base := mustURL(t, "http://example.com/")
	p := NewParser(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := p.Parse(strings.NewReader(tt.html), base)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(result.WordCounts, tt.want) {
				t.Errorf("WordCounts = %v, want %v", result.WordCounts, tt.want)
			}
		})
	}
}

func TestParserIgnoredWords(t *testing.T) {
	t.Parallel()

	patterns, err := crawler.CompilePatterns([]string{"a", "an", "the", "[0-9]+"})
	if err != nil {
		t.Fatal(err)
	}
	p := NewParser(patterns)

	result, err := p.Parse(strings.NewReader("<body>The answer is a 42 and another one</body>"), mustURL(t, "http://example.com/"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := map[string]int{"answer": 1, "is": 1, "and": 1, "another": 1, "one": 1}
	if !reflect.DeepEqual(result.WordCounts, want) {
		t.Errorf("WordCounts = %v, want %v", result.WordCounts, want)
	}
}

func TestParserLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		html string
		want []string
	}{
		{
			name: "relative and absolute",
			base: "http://example.com/dir/page.html",
			html: `<a href="other.html">x</a><a href="/root">x</a><a href="https://other.org/x">x</a>`,
			want: []string{
				"http://example.com/dir/other.html",
				"http://example.com/root",
				"https://other.org/x",
			},
		},
		{
			name: "fragments stripped and deduplicated",
			base: "http://example.com/",
			html: `<a href="/a#one">x</a><a href="/a#two">x</a><a href="/a">x</a><a href="#top">x</a>`,
			want: []string{"http://example.com/a"},
		},
		{
			name: "non http schemes dropped",
			base: "http://example.com/",
			html: `<a href="mailto:me@example.com">x</a><a href="javascript:void(0)">x</a><a href="tel:123">x</a><a href="ftp://example.com/f">x</a><a href="">x</a>`,
			want: []string{},
		},
		{
			name: "base element",
			base: "http://example.com/dir/",
			html: `<html><head><base href="http://cdn.example.com/root/"></head><body><a href="page">x</a></body></html>`,
			want: []string{"http://cdn.example.com/root/page"},
		},
		{
			name: "query kept",
			base: "http://example.com/",
			html: `<a href="/search?q=go&page=2">x</a>`,
			want: []string{"http://example.com/search?q=go&page=2"},
		},
		{
			name: "protocol relative",
			base: "https://example.com/",
			html: `<a href="//static.example.com/x">x</a>`,
			want: []string{"https://static.example.com/x"},
		},
		{
			name: "anchor without href ignored",
			base: "http://example.com/",
			html: `<a name="x">x</a><a href="  /trimmed  ">x</a>`,
			want: []string{"http://example.com/trimmed"},
		},
	}

	p := NewParser(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := p.Parse(strings.NewReader(tt.html), mustURL(t, tt.base))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(result.Links, tt.want) {
				t.Errorf("Links = %v, want %v", result.Links, tt.want)
			}
		})
	}
}

func TestParserTitle(t *testing.T) {
	t.Parallel()

	p := NewParser(nil)
	result, err := p.Parse(strings.NewReader("<title>  My Page  </title><body>x</body>"), mustURL(t, "http://example.com/"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Title != "My Page" {
		t.Errorf("Title = %q, want %q", result.Title, "My Page")
	}
}
