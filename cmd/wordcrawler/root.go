package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawler/internal/log"
)

// NewRootCmd creates the root command for wordcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordcrawler",
		Short: "Concurrent word-count crawler",
		Long: `wordcrawler crawls web pages starting from one or more seed URLs and
counts how often each word appears across every page it reaches.

The crawl follows links up to a depth limit, skips URLs matching ignore
patterns, never fetches the same URL twice and stops starting new fetches
once its deadline has passed. Results are printed as a report and stored
in a local database for later inspection.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getPersistentBool reads a boolean flag that may be defined on the root command.
func getPersistentBool(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return value
}

// newLogger creates the redacting logger selected by --log-json.
// Logs go to stderr so they never mix with a report on stdout.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	if getPersistentBool(cmd, "log-json") {
		return log.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return log.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}
