package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawler/internal/config"
	"github.com/nao1215/wordcrawler/internal/database"
	"github.com/nao1215/wordcrawler/internal/report"
)

// errRunNotFound is returned when no stored run matches the requested ID.
var errRunNotFound = errors.New("run not found")

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	seed      string
	listSeeds bool
	id        string
	deleteID  string
	limit     int
	json      bool
	markdown  bool
}

// NewHistoryCmd creates the history command.
// This command shows crawl results stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show stored crawl results",
		Long: `History lists the crawl runs stored in the database, newest first.

Every 'wordcrawler crawl' saves its result unless --no-save is given.
Runs are identified by an ID; any unambiguous prefix of the ID is accepted.

Examples:
  # List every stored run
  wordcrawler history

  # List the runs that started from a URL
  wordcrawler history https://example.com/

  # Show the five most recent runs
  wordcrawler history -n 5

  # Print the full report of one run
  wordcrawler history --id 3f2a9c1b

  # List all start URLs in the database
  wordcrawler history --list-seeds

  # Delete a run
  wordcrawler history --delete 3f2a9c1b`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-seeds", "L", false,
		"List all start URLs that have stored runs")
	cmd.Flags().StringP("id", "i", "",
		"Print the full report of the run with this ID (or ID prefix)")
	cmd.Flags().String("delete", "",
		"Delete the run with this ID (or ID prefix)")
	cmd.Flags().IntP("limit", "n", 0,
		"Show at most this many runs (0 shows all)")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// parseHistoryOptions reads the history flags.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()

	if len(args) > 0 {
		opts.seed = args[0]
	}
	if opts.listSeeds, err = flags.GetBool("list-seeds"); err != nil {
		return opts, err
	}
	if opts.id, err = flags.GetString("id"); err != nil {
		return opts, err
	}
	if opts.deleteID, err = flags.GetString("delete"); err != nil {
		return opts, err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	return opts, nil
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate flags before opening the database so a typo never creates one
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(context.Background(), db, cmd.OutOrStdout(), opts)
}

// runHistory dispatches to the requested history operation.
func runHistory(ctx context.Context, db *database.ResultDB, out io.Writer, opts historyOptions) error {
	switch {
	case opts.listSeeds:
		return listSeeds(ctx, db, out)
	case opts.deleteID != "":
		return deleteRun(ctx, db, out, opts.deleteID)
	case opts.id != "":
		return showRun(ctx, db, out, opts)
	default:
		return listRuns(ctx, db, out, opts)
	}
}

// historyWriter returns the report writer for the selected format.
// A single run exported as JSON carries the version of this binary.
func historyWriter(out io.Writer, opts historyOptions) report.Writer {
	switch {
	case opts.json:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(true))
	}
}

// listSeeds prints every start URL that has at least one stored run.
func listSeeds(ctx context.Context, db *database.ResultDB, out io.Writer) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawl results found in the database.")
		fmt.Fprintln(out, "\nUse 'wordcrawler crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled start pages (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'wordcrawler history <url>' to see the runs of a start page.")

	return nil
}

// listRuns prints the stored runs, optionally filtered by seed.
func listRuns(ctx context.Context, db *database.ResultDB, out io.Writer, opts historyOptions) error {
	runs, err := db.LatestRuns(ctx, opts.seed, opts.limit)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	_, err = historyWriter(out, opts).WriteHistory(runs)
	return err
}

// resolveRunID expands an ID prefix to a full run ID.
func resolveRunID(ctx context.Context, db *database.ResultDB, prefix string) (string, error) {
	id, err := db.FindRunByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s", errRunNotFound, prefix)
	}
	return id, nil
}

// showRun prints the full report of one run.
func showRun(ctx context.Context, db *database.ResultDB, out io.Writer, opts historyOptions) error {
	id, err := resolveRunID(ctx, db, opts.id)
	if err != nil {
		return err
	}

	result, err := db.GetCrawlResult(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get run %s: %w", id, err)
	}
	if result == nil {
		return fmt.Errorf("%w: %s", errRunNotFound, id)
	}

	_, err = historyWriter(out, opts).Write(result)
	return err
}

// deleteRun removes one run from the database.
func deleteRun(ctx context.Context, db *database.ResultDB, out io.Writer, prefix string) error {
	id, err := resolveRunID(ctx, db, prefix)
	if err != nil {
		return err
	}

	deleted, err := db.DeleteRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", errRunNotFound, id)
	}

	fmt.Fprintf(out, "Deleted run %s\n", id)
	return nil
}
