package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/wordcrawler/internal/model"
)

// ruleWidth is the width of the horizontal rules in text reports.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because it works in all terminals and is easy to pipe
// to files or other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose adds the visited and failed URL lists.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with the URL lists.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl result in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, result)
	w.writePopularWords(&sb, result)
	if w.verbose {
		w.writeURLs(&sb, "VISITED URLS", result.VisitedURLs)
		w.writeURLs(&sb, "FETCH ERRORS", result.FetchErrors)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteHistory outputs one line per stored run, newest first as given.
func (w *SimpleWriter) WriteHistory(runs []model.RunSummary) (int, error) {
	var sb strings.Builder

	writeSection(&sb, "CRAWL HISTORY")
	if len(runs) == 0 {
		sb.WriteString("  No runs recorded\n\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "  %-8s  %-23s  %5s  %6s  %8s  %s\n", "ID", "STARTED", "DEPTH", "URLS", "WORDS", "SEEDS")
	for _, run := range runs {
		status := ""
		if run.TimedOut {
			status = " (timed out)"
		}
		fmt.Fprintf(&sb, "  %-8s  %-23s  %5d  %6d  %8d  %s%s\n",
			shortID(run.ID),
			run.StartedAt.Format(timeLayout),
			run.MaxDepth,
			run.URLsVisited,
			run.DistinctWords,
			strings.Join(run.Seeds, ", "),
			status,
		)
	}
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        WORDCRAWLER REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:         %s\n", result.ID)
	fmt.Fprintf(sb, "Seeds:          %s\n", strings.Join(result.Seeds, ", "))
	fmt.Fprintf(sb, "Started:        %s\n", result.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Elapsed:        %s\n", result.Elapsed)
	fmt.Fprintf(sb, "Max Depth:      %d\n", result.MaxDepth)
	fmt.Fprintf(sb, "URLs Visited:   %d\n", result.URLsVisited)
	fmt.Fprintf(sb, "Distinct Words: %d\n", len(result.WordCounts))
	fmt.Fprintf(sb, "Total Words:    %d\n", result.TotalWords())
	fmt.Fprintf(sb, "Fetch Errors:   %d\n", len(result.FetchErrors))

	if result.TimedOut {
		sb.WriteString("Status:         TIMED OUT (partial results)\n")
	} else {
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writePopularWords writes the ranked word list.
func (w *SimpleWriter) writePopularWords(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.PopularWords) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "POPULAR WORDS")

	if len(result.PopularWords) == 0 {
		sb.WriteString("  No words counted\n\n")
		return
	}

	width := 0
	for _, wc := range result.PopularWords {
		width = max(width, len(wc.Word))
	}
	for i, wc := range result.PopularWords {
		fmt.Fprintf(sb, "  %3d. %-*s %d\n", i+1, width, wc.Word, wc.Count)
	}
	sb.WriteString("\n")
}

// writeURLs writes a titled URL list.
func (w *SimpleWriter) writeURLs(sb *strings.Builder, title string, urls []string) {
	if len(urls) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, title)

	if len(urls) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, u := range urls {
		fmt.Fprintf(sb, "  [+] %s\n", u)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by wordcrawler\n")
	sb.WriteString("https://github.com/nao1215/wordcrawler\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
