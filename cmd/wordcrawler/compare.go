package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawler/internal/config"
	"github.com/nao1215/wordcrawler/internal/database"
	"github.com/nao1215/wordcrawler/internal/model"
)

// defaultCompareTop is the default number of words listed per section.
const defaultCompareTop = 10

// compareOptions holds the parsed flags of the compare command.
type compareOptions struct {
	seed     string
	withID   string
	since    string
	top      int
	json     bool
	markdown bool
}

// NewCompareCmd creates the compare command.
// This command compares the word counts of two stored runs.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare word counts with an earlier crawl",
		Long: `Compare shows how the words of a site changed between two stored runs.

By default the latest run of the start URL is compared with the run before
it. The output lists:
- Words that appeared since the earlier run
- Words that disappeared
- Words whose count changed the most

Examples:
  # Compare the latest two runs of a site
  wordcrawler compare https://example.com/

  # Compare the latest run with a specific run
  wordcrawler compare --with-id 3f2a9c1b https://example.com/

  # Compare with the first run since a date
  wordcrawler compare --since 2026-01-01 https://example.com/

  # Output the comparison as JSON
  wordcrawler compare --json https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with-id", "i", "",
		"Compare with the run with this ID (or ID prefix)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")
	cmd.Flags().IntP("top", "n", defaultCompareTop,
		"Number of words listed per section (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	cmd.MarkFlagsMutuallyExclusive("with-id", "since")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	opts := compareOptions{seed: args[0]}
	flags := cmd.Flags()

	var err error
	if opts.withID, err = flags.GetString("with-id"); err != nil {
		return err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return err
	}
	if opts.top, err = flags.GetInt("top"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runComparison(context.Background(), db, cmd.OutOrStdout(), opts)
}

// runComparison loads the two runs and prints their comparison.
func runComparison(ctx context.Context, db *database.ResultDB, out io.Writer, opts compareOptions) error {
	runs, err := db.ListRuns(ctx, opts.seed)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no crawl history found for %s", opts.seed)
	}

	// Latest run is always the current one
	currentID := runs[0].ID
	var previousID string

	switch {
	case opts.withID != "":
		previousID, err = resolveRunID(ctx, db, opts.withID)
		if err != nil {
			return err
		}
		if previousID == currentID {
			return errors.New("cannot compare the latest run with itself")
		}
	case opts.since != "":
		since, err := time.Parse(time.DateOnly, opts.since)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Runs are newest first, so walk backwards to find the oldest match
		for i := len(runs) - 1; i >= 1; i-- {
			if !runs[i].StartedAt.Before(since) {
				previousID = runs[i].ID
				break
			}
		}
		if previousID == "" {
			return fmt.Errorf("no earlier run found since %s", opts.since)
		}
	default:
		if len(runs) < 2 {
			return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		previousID = runs[1].ID
	}

	previous, err := db.GetCrawlResult(ctx, previousID)
	if err != nil {
		return fmt.Errorf("failed to get run %s: %w", previousID, err)
	}
	current, err := db.GetCrawlResult(ctx, currentID)
	if err != nil {
		return fmt.Errorf("failed to get run %s: %w", currentID, err)
	}
	if previous == nil || current == nil {
		return errRunNotFound
	}

	comparison := compareResults(opts.seed, previous, current, opts.top)

	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// ComparisonResult holds the result of comparing two crawl runs.
type ComparisonResult struct {
	// Seed is the start URL both runs share.
	Seed string `json:"seed"`

	// PreviousRun summarizes the earlier run.
	PreviousRun model.RunSummary `json:"previousRun"`

	// CurrentRun summarizes the later run.
	CurrentRun model.RunSummary `json:"currentRun"`

	// NewWords were counted only in the current run.
	NewWords []WordDelta `json:"newWords,omitempty"`

	// VanishedWords were counted only in the previous run.
	VanishedWords []WordDelta `json:"vanishedWords,omitempty"`

	// ChangedWords were counted in both runs with different counts,
	// largest change first.
	ChangedWords []WordDelta `json:"changedWords,omitempty"`

	// UnchangedCount is the number of words with the same count in both runs.
	UnchangedCount int `json:"unchangedCount"`
}

// WordDelta is the change of one word's count between two runs.
type WordDelta struct {
	Word     string `json:"word"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Delta    int    `json:"delta"`
}

// compareResults compares the word counts of two runs.
// Each list is truncated to top entries; top <= 0 keeps every entry.
func compareResults(seed string, previous, current *model.CrawlResult, top int) *ComparisonResult {
	result := &ComparisonResult{
		Seed:        seed,
		PreviousRun: previous.Summary(),
		CurrentRun:  current.Summary(),
	}

	for word, n := range current.WordCounts {
		before, ok := previous.WordCounts[word]
		switch {
		case !ok:
			result.NewWords = append(result.NewWords, WordDelta{Word: word, Current: n, Delta: n})
		case before != n:
			result.ChangedWords = append(result.ChangedWords, WordDelta{Word: word, Previous: before, Current: n, Delta: n - before})
		default:
			result.UnchangedCount++
		}
	}
	for word, n := range previous.WordCounts {
		if _, ok := current.WordCounts[word]; !ok {
			result.VanishedWords = append(result.VanishedWords, WordDelta{Word: word, Previous: n, Delta: -n})
		}
	}

	result.NewWords = topDeltas(result.NewWords, top)
	result.VanishedWords = topDeltas(result.VanishedWords, top)
	result.ChangedWords = topDeltas(result.ChangedWords, top)

	return result
}

// topDeltas orders deltas by absolute change, then word, and truncates to top.
func topDeltas(deltas []WordDelta, top int) []WordDelta {
	sort.Slice(deltas, func(i, j int) bool {
		a, b := abs(deltas[i].Delta), abs(deltas[j].Delta)
		if a != b {
			return a > b
		}
		return deltas[i].Word < deltas[j].Word
	})
	if top > 0 && len(deltas) > top {
		deltas = deltas[:top]
	}
	return deltas
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder
	prev, cur := result.PreviousRun, result.CurrentRun

	fmt.Fprintf(&sb, "# Crawl Comparison: %s\n\n", result.Seed)

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Previous | Current | Change |\n")
	sb.WriteString("|--------|----------|---------|--------|\n")
	fmt.Fprintf(&sb, "| Run | `%s` | `%s` | - |\n", shortRunID(prev.ID), shortRunID(cur.ID))
	fmt.Fprintf(&sb, "| Date | %s | %s | - |\n",
		prev.StartedAt.Format("2006-01-02 15:04"), cur.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "| URLs Visited | %d | %d | %s |\n",
		prev.URLsVisited, cur.URLsVisited, formatDelta(cur.URLsVisited-prev.URLsVisited))
	fmt.Fprintf(&sb, "| Distinct Words | %d | %d | %s |\n",
		prev.DistinctWords, cur.DistinctWords, formatDelta(cur.DistinctWords-prev.DistinctWords))
	fmt.Fprintf(&sb, "| **Total Words** | **%d** | **%d** | **%s** |\n",
		prev.TotalWords, cur.TotalWords, formatDelta(cur.TotalWords-prev.TotalWords))

	writeMarkdownDeltas(&sb, "New Words", result.NewWords)
	writeMarkdownDeltas(&sb, "Vanished Words", result.VanishedWords)
	writeMarkdownDeltas(&sb, "Changed Words", result.ChangedWords)

	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\n---\n\n*%d words unchanged*\n", result.UnchangedCount)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

func writeMarkdownDeltas(sb *strings.Builder, title string, deltas []WordDelta) {
	if len(deltas) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n## %s (%d)\n\n", title, len(deltas))
	sb.WriteString("| Word | Previous | Current | Change |\n")
	sb.WriteString("|------|----------|---------|--------|\n")
	for _, d := range deltas {
		fmt.Fprintf(sb, "| %s | %d | %d | %s |\n", d.Word, d.Previous, d.Current, formatDelta(d.Delta))
	}
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder
	prev, cur := result.PreviousRun, result.CurrentRun

	fmt.Fprintf(&sb, "Crawl Comparison: %s\n", result.Seed)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "\nPrevious run: %s  %s\n", shortRunID(prev.ID), prev.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current run:  %s  %s\n", shortRunID(cur.ID), cur.StartedAt.Format("2006-01-02 15:04:05"))

	sb.WriteString("\nSummary:\n")
	fmt.Fprintf(&sb, "  %-16s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 52) + "\n")
	fmt.Fprintf(&sb, "  %-16s  %-10d  %-10d  %-10s\n", "URLs visited",
		prev.URLsVisited, cur.URLsVisited, formatDelta(cur.URLsVisited-prev.URLsVisited))
	fmt.Fprintf(&sb, "  %-16s  %-10d  %-10d  %-10s\n", "Distinct words",
		prev.DistinctWords, cur.DistinctWords, formatDelta(cur.DistinctWords-prev.DistinctWords))
	fmt.Fprintf(&sb, "  %-16s  %-10d  %-10d  %-10s\n", "Total words",
		prev.TotalWords, cur.TotalWords, formatDelta(cur.TotalWords-prev.TotalWords))

	if len(result.NewWords) > 0 {
		fmt.Fprintf(&sb, "\nNew Words (%d):\n", len(result.NewWords))
		for _, d := range result.NewWords {
			fmt.Fprintf(&sb, "  [+] %s (%d)\n", d.Word, d.Current)
		}
	}

	if len(result.VanishedWords) > 0 {
		fmt.Fprintf(&sb, "\nVanished Words (%d):\n", len(result.VanishedWords))
		for _, d := range result.VanishedWords {
			fmt.Fprintf(&sb, "  [-] %s (%d)\n", d.Word, d.Previous)
		}
	}

	if len(result.ChangedWords) > 0 {
		fmt.Fprintf(&sb, "\nChanged Words (%d):\n", len(result.ChangedWords))
		for _, d := range result.ChangedWords {
			fmt.Fprintf(&sb, "  [*] %s %d -> %d (%s)\n", d.Word, d.Previous, d.Current, formatDelta(d.Delta))
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d words\n", result.UnchangedCount)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// shortRunID abbreviates a run ID for display.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
