package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/wordcrawler/internal/config"
)

//go:embed templates/wordcrawler.yaml
var configTemplate []byte

// startPagesExample is the commented start page block of the template.
// It is replaced when start pages are given with --start-page.
const startPagesExample = `# startPages:
#   - https://example.com/
#   - https://example.org/docs/
`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented wordcrawler configuration file",
		Long: `Write a .wordcrawler configuration file with every setting documented.

The file sets the crawl depth, the deadline and the report size to their
defaults, and shows commented examples for URL and word ignore patterns
and per-site cookies and headers. Start pages given with --start-page are
written into the file so that a plain "wordcrawler crawl" picks them up.

Examples:
  # Create .wordcrawler in the current directory
  wordcrawler init

  # Create a file that already knows where to start
  wordcrawler init -s https://example.com/ -s https://example.org/docs/

  # Write somewhere else, replacing an existing file
  wordcrawler init -o ~/.wordcrawler -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().StringArrayP("start-page", "s", nil,
		"Start page written into the file (repeatable)")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	force, err := flags.GetBool("force")
	if err != nil {
		return err
	}
	startPages, err := flags.GetStringArray("start-page")
	if err != nil {
		return err
	}

	content, err := renderConfigTemplate(startPages)
	if err != nil {
		return err
	}
	if err := createConfigFile(outputPath, content, force); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	if len(startPages) > 0 {
		fmt.Fprintf(out, "Start pages: %d (run \"wordcrawler crawl\" to crawl them)\n", len(startPages))
		return nil
	}
	fmt.Fprintln(out, "Add startPages to the file, or pass URLs to \"wordcrawler crawl\".")
	return nil
}

// renderConfigTemplate returns the template with startPages filled in.
// Each start page must be an absolute http or https URL, since the crawl
// would otherwise reject the file only at run time.
func renderConfigTemplate(startPages []string) ([]byte, error) {
	if len(startPages) == 0 {
		return configTemplate, nil
	}

	var block bytes.Buffer
	block.WriteString("startPages:\n")
	for _, page := range startPages {
		u, err := url.Parse(page)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid start page %q: want an absolute http or https URL", page)
		}
		block.WriteString("  - " + strconv.Quote(page) + "\n")
	}

	if !bytes.Contains(configTemplate, []byte(startPagesExample)) {
		return nil, errors.New("config template has no start page section")
	}
	return bytes.Replace(configTemplate, []byte(startPagesExample), block.Bytes(), 1), nil
}

// createConfigFile creates path with mode 0600. Without force an existing
// file is an error; the check and the create are one exclusive open.
func createConfigFile(path string, content []byte, force bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flag, 0o600) //nolint:gosec // the path is chosen by the user
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return f.Close()
}
