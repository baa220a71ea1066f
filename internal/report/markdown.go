package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/wordcrawler/internal/model"
)

// pieChartWords is the maximum number of slices in the word pie chart.
// A chart with more slices than this is unreadable.
const pieChartWords = 8

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables, mermaid charts and GitHub-flavored
// alerts without string templating.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeAlert(md, result)
	w.writePopularWords(md, result)
	w.writeURLs(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs the run list as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			"`" + shortID(run.ID) + "`",
			run.StartedAt.Format(timeLayout),
			strconv.Itoa(run.MaxDepth),
			strconv.Itoa(run.URLsVisited),
			strconv.Itoa(run.DistinctWords),
			strconv.Itoa(run.TotalWords),
			strings.Join(run.Seeds, "<br>"),
			statusText(run.TimedOut),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Depth", "URLs", "Distinct Words", "Total Words", "Seeds", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Word Crawl Report")
	md.PlainText("")

	seeds := make([]string, len(result.Seeds))
	for i, s := range result.Seeds {
		seeds[i] = "`" + s + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + result.ID + "`"},
			{"Seeds", strings.Join(seeds, "<br>")},
			{"Started", result.StartedAt.Format(timeLayout)},
			{"Elapsed", result.Elapsed.String()},
			{"Max Depth", strconv.Itoa(result.MaxDepth)},
			{"URLs Visited", strconv.Itoa(result.URLsVisited)},
			{"Distinct Words", strconv.Itoa(len(result.WordCounts))},
			{"Total Words", strconv.Itoa(result.TotalWords())},
			{"Status", statusText(result.TimedOut)},
		},
	})
	md.PlainText("")
}

// statusText returns the status cell for a run.
func statusText(timedOut bool) string {
	if timedOut {
		return "⚠️ Timed Out (partial results)"
	}
	return "✅ Complete"
}

// writeAlert writes an alert describing how complete the result is.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, result *model.CrawlResult) {
	switch {
	case result.TimedOut:
		md.Warningf(
			"The deadline expired before the crawl finished. Counts cover %d URL(s) only.",
			result.URLsVisited,
		)
	case len(result.FetchErrors) > 0:
		md.Cautionf(
			"%d URL(s) could not be fetched and contributed no words.",
			len(result.FetchErrors),
		)
	case len(result.WordCounts) == 0:
		md.Note("No words were counted.")
	default:
		md.Tip("Every reachable page within the depth budget was fetched.")
	}
	md.PlainText("")
}

// writePopularWords writes the ranked word table and a pie chart.
func (w *MarkdownWriter) writePopularWords(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Popular Words")
	md.PlainText("")

	if len(result.PopularWords) == 0 {
		md.PlainText("No words counted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.PopularWords))
	for i, wc := range result.PopularWords {
		rows[i] = []string{strconv.Itoa(i + 1), truncateString(wc.Word, 40), strconv.Itoa(wc.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rank", "Word", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, result.PopularWords)
}

// writePieChart writes a mermaid pie chart of the most frequent words.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, words []model.WordCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Word Frequency"),
		piechart.WithShowData(true),
	)

	for i, wc := range words {
		if i == pieChartWords {
			break
		}
		chart.LabelAndIntValue(wc.Word, uint64(wc.Count)) //nolint:gosec // counts are never negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeURLs writes the visited and failed URLs as collapsible lists.
func (w *MarkdownWriter) writeURLs(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.VisitedURLs) == 0 && len(result.FetchErrors) == 0 {
		return
	}

	md.H2("URLs")
	md.PlainText("")

	if len(result.VisitedURLs) > 0 {
		md.Details(
			"Visited ("+strconv.Itoa(len(result.VisitedURLs))+")",
			"\n"+bulletLines(result.VisitedURLs),
		)
	}
	if len(result.FetchErrors) > 0 {
		md.PlainText("### Fetch Errors")
		md.PlainText("")
		md.BulletList(result.FetchErrors...)
	}
	md.PlainText("")
}

// bulletLines renders items as a markdown bullet list inside a details block.
func bulletLines(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	return sb.String()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [wordcrawler](https://github.com/nao1215/wordcrawler)*")
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
