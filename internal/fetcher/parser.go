package fetcher

import (
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/wordcrawler/internal/crawler"
)

// Parser extracts words and links from HTML documents.
// A Parser is immutable and safe for concurrent use.
//
// Design decision: We use goquery on top of golang.org/x/net/html rather
// than walking the node tree by hand because:
//  1. Dropping script and style subtrees is a single selector
//  2. Anchor and <base> lookups read like the HTML they target
//  3. The parser underneath still copes with malformed real-world HTML
type Parser struct {
	// ignoredWords are full-match patterns; matching words are not counted.
	ignoredWords []*regexp.Regexp
}

// ParseResult contains what was extracted from one document.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// WordCounts maps each lower-cased word to its occurrences in the body.
	WordCounts map[string]int

	// Links are absolute http(s) URLs without fragments, deduplicated,
	// in order of first appearance.
	Links []string
}

// NewParser creates a Parser. ignoredWords should come from crawler.CompilePatterns.
func NewParser(ignoredWords []*regexp.Regexp) *Parser {
	return &Parser{ignoredWords: ignoredWords}
}

// Parse reads an HTML document. base is the document's URL and is used to
// resolve relative links; a <base href> in the document takes precedence.
func (p *Parser) Parse(content io.Reader, base *url.URL) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, err
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	result := &ParseResult{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: p.links(doc, base),
	}

	doc.Find("script, style, noscript, template").Remove()

	// Text nodes are joined with a space: "<p>one</p><p>two</p>" is two words.
	var text strings.Builder
	for _, n := range doc.Find("body").Nodes {
		collectText(n, &text)
	}
	result.WordCounts = p.countWords(text.String())

	return result, nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// countWords splits text into runs of letters and digits and counts them.
func (p *Parser) countWords(text string) map[string]int {
	// cases.Caser keeps state, so each call gets its own.
	lower := cases.Lower(language.Und)

	counts := make(map[string]int)
	for _, field := range strings.FieldsFunc(text, isSeparator) {
		word := lower.String(field)
		if crawler.MatchesAny(p.ignoredWords, word) {
			continue
		}
		counts[word]++
	}
	return counts
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// links collects the crawlable anchors of doc.
func (p *Parser) links(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved := resolveLink(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})

	return links
}

// resolveLink returns the absolute form of href, or "" if it should not be crawled.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		// javascript:, mailto:, tel:, data:, ftp: ...
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""

	return resolved.String()
}
