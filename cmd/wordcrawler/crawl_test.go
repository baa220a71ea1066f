package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/wordcrawler/internal/config"
	"github.com/nao1215/wordcrawler/internal/crawler"
	"github.com/nao1215/wordcrawler/internal/database"
	"github.com/nao1215/wordcrawler/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// siteFetcher serves a fixed link graph. URLs missing from pages fail with 404.
func siteFetcher(pages map[string]*crawler.FetchResult) crawler.Fetcher {
	return crawler.FetcherFunc(func(_ context.Context, url string) (*crawler.FetchResult, error) {
		page, ok := pages[url]
		if !ok {
			return nil, &crawler.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: errors.New("not found")}
		}
		return page, nil
	})
}

func testSite() map[string]*crawler.FetchResult {
	return map[string]*crawler.FetchResult{
		"http://site.test/": {
			WordCounts: map[string]int{"hello": 2, "world": 1},
			Links:      []string{"http://site.test/a", "http://site.test/b"},
		},
		"http://site.test/a": {
			WordCounts: map[string]int{"hello": 1},
			Links:      []string{"http://site.test/"},
		},
	}
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	if cmd.Use != "crawl [url...]" {
		t.Errorf("expected Use 'crawl [url...]', got %q", cmd.Use)
	}

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"depth", "d", "10"},
		{"timeout", "t", "30s"},
		{"parallelism", "P", ""},
		{"ignore", "i", "[]"},
		{"ignore-word", "w", "[]"},
		{"popular", "n", "10"},
		{"config", "c", ""},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"output", "o", ""},
		{"profile", "", ""},
		{"user-agent", "", config.DefaultUserAgent},
		{"delay", "", "0s"},
		{"request-timeout", "", "30s"},
		{"proxy", "", ""},
		{"robots", "", "false"},
		{"no-save", "", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			// parallelism defaults to the CPU count of the machine
			if tt.name != "parallelism" && flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// writeConfigFile writes a YAML configuration file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wordcrawler.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("positional arguments become seeds", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", writeConfigFile(t, ""))
		cfg, err := buildConfig(cmd, []string{"https://a.test/", "https://b.test/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Seeds) != 2 || cfg.Seeds[1] != "https://b.test/" {
			t.Errorf("Seeds = %v", cfg.Seeds)
		}
		if cfg.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("MaxDepth = %d, want default %d", cfg.MaxDepth, config.DefaultMaxDepth)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB by default")
		}
		if cfg.UserAgent != userAgent() {
			t.Errorf("UserAgent = %q, want the versioned default %q", cfg.UserAgent, userAgent())
		}
	})

	t.Run("flags set every option", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		err := cmd.Flags().Parse([]string{
			"-c", writeConfigFile(t, ""),
			"-d", "3",
			"-t", "5s",
			"-P", "2",
			"-i", `.*\.png`,
			"-i", `.*\.jpg`,
			"-w", "[0-9]+",
			"-n", "0",
			"-o", "out.txt",
			"--profile", "prof.txt",
			"--user-agent", "test-agent",
			"--delay", "100ms",
			"--request-timeout", "2s",
			"--proxy", "127.0.0.1:1080",
			"--robots",
			"--no-save",
			"--json",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"https://a.test/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxDepth != 3 || cfg.Timeout != 5*time.Second || cfg.Parallelism != 2 {
			t.Errorf("depth/timeout/parallelism = %d/%s/%d", cfg.MaxDepth, cfg.Timeout, cfg.Parallelism)
		}
		if len(cfg.IgnoredURLs) != 2 || cfg.IgnoredURLs[1] != `.*\.jpg` {
			t.Errorf("IgnoredURLs = %v", cfg.IgnoredURLs)
		}
		if len(cfg.IgnoredWords) != 1 || cfg.PopularWordCount != 0 {
			t.Errorf("IgnoredWords = %v, PopularWordCount = %d", cfg.IgnoredWords, cfg.PopularWordCount)
		}
		if cfg.ResultPath != "out.txt" || cfg.ProfileOutputPath != "prof.txt" {
			t.Errorf("ResultPath = %q, ProfileOutputPath = %q", cfg.ResultPath, cfg.ProfileOutputPath)
		}
		if cfg.UserAgent != "test-agent" || cfg.CrawlDelay != 100*time.Millisecond || cfg.RequestTimeout != 2*time.Second {
			t.Errorf("http options = %q/%s/%s", cfg.UserAgent, cfg.CrawlDelay, cfg.RequestTimeout)
		}
		if cfg.ProxyAddress != "127.0.0.1:1080" || !cfg.RespectRobots {
			t.Errorf("proxy/robots = %q/%v", cfg.ProxyAddress, cfg.RespectRobots)
		}
		if cfg.SaveToDB || !cfg.JSONReport {
			t.Errorf("SaveToDB = %v, JSONReport = %v", cfg.SaveToDB, cfg.JSONReport)
		}
	})

	t.Run("config file values apply and flags override them", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `
startPages:
  - https://from-file.test/
maxDepth: 4
timeoutSeconds: 7
popularWordCount: 3
ignoredWords:
  - "the"
sites:
  from-file.test:
    cookie: "session=abc"
`)

		cmd := NewCrawlCmd()
		if err := cmd.Flags().Parse([]string{"-c", path, "-d", "2"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://from-file.test/" {
			t.Errorf("Seeds = %v, want start pages from file", cfg.Seeds)
		}
		if cfg.MaxDepth != 2 {
			t.Errorf("MaxDepth = %d, want flag value 2", cfg.MaxDepth)
		}
		if cfg.Timeout != 7*time.Second {
			t.Errorf("Timeout = %s, want 7s from file", cfg.Timeout)
		}
		if cfg.PopularWordCount != 3 {
			t.Errorf("PopularWordCount = %d, want 3 from file", cfg.PopularWordCount)
		}
		if cfg.Sites["from-file.test"].Cookie != "session=abc" {
			t.Errorf("Sites = %v", cfg.Sites)
		}
	})

	t.Run("arguments replace start pages from file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", writeConfigFile(t, "startPages: [https://from-file.test/]\n"))
		cfg, err := buildConfig(cmd, []string{"https://from-args.test/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://from-args.test/" {
			t.Errorf("Seeds = %v", cfg.Seeds)
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := buildConfig(cmd, []string{"https://a.test/"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", writeConfigFile(t, "{invalid yaml"))
		if _, err := buildConfig(cmd, []string{"https://a.test/"}); err == nil {
			t.Error("expected error for invalid config file")
		}
	})
}

func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("reads persistent flag from root", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		crawl, _, err := root.Find([]string{"crawl"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !getVerboseFlag(crawl) {
			t.Error("expected true from root verbose flag")
		}
	})

	t.Run("false when flag is missing", func(t *testing.T) {
		t.Parallel()

		if getVerboseFlag(NewCrawlCmd()) {
			t.Error("expected false without verbose flag")
		}
	})
}

// testCrawlConfig returns a config that writes everything below dir.
func testCrawlConfig(dir string) *config.Config {
	cfg := config.NewConfig()
	cfg.Seeds = []string{"http://site.test/"}
	cfg.Parallelism = 4
	cfg.DBDir = filepath.Join(dir, "db")
	return cfg
}

func TestRunCrawlWith(t *testing.T) {
	t.Parallel()

	t.Run("writes report, profile and database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testCrawlConfig(dir)
		cfg.JSONReport = true
		cfg.ResultPath = filepath.Join(dir, "out", "result.json")
		cfg.ProfileOutputPath = filepath.Join(dir, "profile.txt")

		var stdout bytes.Buffer
		if err := runCrawlWith(context.Background(), cfg, siteFetcher(testSite()), &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout.Len() != 0 {
			t.Error("expected nothing on stdout when writing to a file")
		}

		data, err := os.ReadFile(cfg.ResultPath)
		if err != nil {
			t.Fatalf("failed to read result: %v", err)
		}
		var result model.CrawlResult
		if err := json.Unmarshal(data, &result); err != nil {
			t.Fatalf("result is not valid JSON: %v", err)
		}
		if result.WordCounts["hello"] != 3 || result.WordCounts["world"] != 1 {
			t.Errorf("WordCounts = %v", result.WordCounts)
		}
		if result.URLsVisited != 3 {
			t.Errorf("URLsVisited = %d, want 3", result.URLsVisited)
		}
		if len(result.FetchErrors) != 1 || result.FetchErrors[0] != "http://site.test/b" {
			t.Errorf("FetchErrors = %v", result.FetchErrors)
		}

		profile, err := os.ReadFile(cfg.ProfileOutputPath)
		if err != nil {
			t.Fatalf("failed to read profile: %v", err)
		}
		for _, want := range []string{"Run at", "fetch took", "over 3 call(s)", "crawl took"} {
			if !strings.Contains(string(profile), want) {
				t.Errorf("expected profile to contain %q:\n%s", want, profile)
			}
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		stored, err := db.GetCrawlResult(context.Background(), result.ID)
		if err != nil {
			t.Fatalf("GetCrawlResult() error = %v", err)
		}
		if stored == nil || stored.WordCounts["hello"] != 3 {
			t.Errorf("stored result = %+v", stored)
		}
	})

	t.Run("profile is appended on every run", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testCrawlConfig(dir)
		cfg.SaveToDB = false
		cfg.ProfileOutputPath = filepath.Join(dir, "profile.txt")

		for range 2 {
			if err := runCrawlWith(context.Background(), cfg, siteFetcher(testSite()), io.Discard, discardLogger()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		profile, err := os.ReadFile(cfg.ProfileOutputPath)
		if err != nil {
			t.Fatalf("failed to read profile: %v", err)
		}
		if n := strings.Count(string(profile), "Run at"); n != 2 {
			t.Errorf("expected 2 profile entries, got %d", n)
		}
	})

	t.Run("no-save leaves no database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testCrawlConfig(dir)
		cfg.SaveToDB = false

		if err := runCrawlWith(context.Background(), cfg, siteFetcher(testSite()), io.Discard, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(filepath.Join(cfg.DBDir, database.DBFileName)); !os.IsNotExist(err) {
			t.Errorf("expected no database file, stat error = %v", err)
		}
	})

	t.Run("failed seed still writes report", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testCrawlConfig(dir)
		cfg.Seeds = []string{"http://missing.test/"}
		cfg.SaveToDB = false

		var stdout bytes.Buffer
		err := runCrawlWith(context.Background(), cfg, siteFetcher(testSite()), &stdout, discardLogger())
		if !errors.Is(err, crawler.ErrSeedFailed) {
			t.Fatalf("expected ErrSeedFailed, got %v", err)
		}
		if !strings.Contains(stdout.String(), "Fetch Errors:   1") {
			t.Errorf("expected report with the failure:\n%s", stdout.String())
		}
	})

	t.Run("depth limits the crawl", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testCrawlConfig(dir)
		cfg.MaxDepth = 1
		cfg.SaveToDB = false
		cfg.JSONReport = true

		var stdout bytes.Buffer
		if err := runCrawlWith(context.Background(), cfg, siteFetcher(testSite()), &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result model.CrawlResult
		if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
			t.Fatalf("result is not valid JSON: %v", err)
		}
		if result.URLsVisited != 1 || result.WordCounts["hello"] != 2 {
			t.Errorf("URLsVisited = %d, WordCounts = %v", result.URLsVisited, result.WordCounts)
		}
	})

	t.Run("ignored URLs are not fetched", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testCrawlConfig(dir)
		cfg.IgnoredURLs = []string{`http://site\.test/a`}
		cfg.SaveToDB = false
		cfg.JSONReport = true

		var stdout bytes.Buffer
		if err := runCrawlWith(context.Background(), cfg, siteFetcher(testSite()), &stdout, discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var result model.CrawlResult
		if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
			t.Fatalf("result is not valid JSON: %v", err)
		}
		if result.WordCounts["hello"] != 2 {
			t.Errorf("hello = %d, want 2 without the ignored page", result.WordCounts["hello"])
		}
	})

	t.Run("cancelled context reports interruption", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testCrawlConfig(dir)
		cfg.SaveToDB = false

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var stdout bytes.Buffer
		err := runCrawlWith(ctx, cfg, siteFetcher(testSite()), &stdout, discardLogger())
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if !strings.Contains(stdout.String(), "TIMED OUT") {
			t.Errorf("expected partial result status:\n%s", stdout.String())
		}
	})
}

func TestRunCrawl(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>Go Gopher</p><a href="/next">next</a></body></html>`)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><p>gopher</p><a href="/">home</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testCrawlConfig(t.TempDir())
	cfg.Seeds = []string{server.URL + "/"}
	cfg.SaveToDB = false
	cfg.JSONReport = true

	var stdout bytes.Buffer
	if err := runCrawl(context.Background(), cfg, &stdout, discardLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result model.CrawlResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if result.WordCounts["gopher"] != 2 {
		t.Errorf("gopher = %d, want 2", result.WordCounts["gopher"])
	}
	if result.URLsVisited != 2 {
		t.Errorf("URLsVisited = %d, want 2", result.URLsVisited)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestRunCrawlCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no seeds", nil, config.ErrNoSeed},
		{"conflicting formats", []string{"--json", "--markdown", "https://a.test/"}, config.ErrConflictingReportFormats},
		{"negative depth", []string{"-d", "-1", "https://a.test/"}, config.ErrInvalidDepth},
		{"relative seed", []string{"/relative"}, config.ErrInvalidSeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewCrawlCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(append([]string{"-c", writeConfigFile(t, "")}, tt.args...))

			if err := cmd.Execute(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewCrawlResult(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Seeds = []string{"http://site.test/"}
	cfg.MaxDepth = 5
	cfg.PopularWordCount = 1

	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res := &crawler.Result{
		WordCounts: map[string]int{"a": 1, "b": 2},
		Visited:    []string{"http://site.test/"},
		Failed:     []string{"http://site.test/x"},
		Stats: crawler.Stats{
			URLsVisited:  1,
			StoppedEarly: true,
			Elapsed:      time.Second,
		},
	}

	result := newCrawlResult(cfg, started, res)

	if result.ID == "" {
		t.Error("expected a run ID")
	}
	if !result.StartedAt.Equal(started) || result.MaxDepth != 5 || result.Elapsed != time.Second {
		t.Errorf("run info = %v/%d/%s", result.StartedAt, result.MaxDepth, result.Elapsed)
	}
	if !result.TimedOut {
		t.Error("expected TimedOut")
	}
	if len(result.PopularWords) != 1 || result.PopularWords[0].Word != "b" {
		t.Errorf("PopularWords = %v", result.PopularWords)
	}
	if len(result.WordCounts) != 2 {
		t.Errorf("WordCounts = %v, want every word", result.WordCounts)
	}
}
