package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/wordcrawler/internal/model"
)

// JSONWriter outputs results in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the result types are plain structs with tags and
// the output is written once per run.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl result in JSON format.
// The object carries the wordCounts map and the urlsVisited count.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.writeJSON(result)
}

// WriteHistory outputs the run list as a JSON array.
// A nil list is written as [] so consumers never see null.
func (w *JSONWriter) WriteHistory(runs []model.RunSummary) (int, error) {
	if runs == nil {
		runs = []model.RunSummary{}
	}
	return w.writeJSON(runs)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps a crawl result with metadata about the tool that made it.
//
// Design decision: We wrap the result rather than adding fields to
// CrawlResult because the stored result should not change when the
// binary is upgraded.
type JSONReport struct {
	// Version is the wordcrawler version that generated this report.
	Version string `json:"version"`

	// Result is the crawl result.
	Result *model.CrawlResult `json:"result"`

	// Summary holds the totals for quick access.
	Summary model.RunSummary `json:"summary"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(result *model.CrawlResult, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Result:  result,
		Summary: result.Summary(),
	}
}

// FullJSONWriter outputs complete results with a metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the wordcrawler version string.
	version string
}

// NewFullJSONWriter creates a writer for complete results with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the result wrapped with metadata.
func (w *FullJSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.writeJSON(NewJSONReport(result, w.version))
}
