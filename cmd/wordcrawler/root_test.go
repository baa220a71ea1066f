package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "wordcrawler" {
			t.Errorf("expected use 'wordcrawler', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has log-json flag", func(t *testing.T) {
		t.Parallel()
		if cmd.PersistentFlags().Lookup("log-json") == nil {
			t.Error("expected log-json flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"crawl": false, "history": false, "compare": false, "init": false, "version": false}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected SilenceUsage and SilenceErrors to be true")
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("text by default", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		var buf bytes.Buffer
		root.SetErr(&buf)

		newLogger(root, false).Warn("slow host", "host", "a.test")

		if !strings.Contains(buf.String(), "msg=\"slow host\"") {
			t.Errorf("expected text log line, got %q", buf.String())
		}
	})

	t.Run("json with --log-json", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		if err := root.PersistentFlags().Set("log-json", "true"); err != nil {
			t.Fatalf("failed to set flag: %v", err)
		}
		var buf bytes.Buffer
		root.SetErr(&buf)

		newLogger(root, false).Warn("slow host", "host", "a.test")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
		}
		if entry["msg"] != "slow host" || entry["host"] != "a.test" {
			t.Errorf("unexpected entry: %v", entry)
		}
	})
}
