package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// projectURL is advertised in the User-Agent so site operators can find us.
const projectURL = "https://github.com/nao1215/wordcrawler"

// build describes the running binary. Values passed with ldflags win over
// what the Go toolchain recorded; missing values fall back to "(devel)" or
// "unknown" so that nothing printed is ever empty.
type build struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
	// Modified is set when the binary was built from a dirty work tree.
	Modified bool
}

var currentBuild = sync.OnceValue(func() build {
	b := build{Version: "(devel)", Commit: "unknown", Date: "unknown", GoVersion: runtime.Version()}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				b.Commit = shortRevision(s.Value)
			case "vcs.time":
				b.Date = s.Value
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}

	if version != "" {
		b.Version = version
	}
	if commit != "" {
		b.Commit = commit
	}
	if date != "" {
		b.Date = date
	}
	return b
})

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func getVersion() string { return currentBuild().Version }

// userAgent is the User-Agent sent when neither the flag nor the
// configuration file chose one. It carries the release so that operators
// of crawled sites can tell versions apart in their logs.
func userAgent() string {
	return fmt.Sprintf("wordcrawler/%s (+%s)", getVersion(), projectURL)
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash and build date of wordcrawler, together
with the User-Agent it sends to the sites it crawls.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			b := currentBuild()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "wordcrawler version %s\n", b.Version)
			rev := b.Commit
			if b.Modified {
				rev += " (modified)"
			}
			fmt.Fprintf(out, "  commit:     %s\n", rev)
			fmt.Fprintf(out, "  built:      %s\n", b.Date)
			fmt.Fprintf(out, "  go:         %s\n", b.GoVersion)
			fmt.Fprintf(out, "  user agent: %s\n", userAgent())
		},
	}
}
