package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the name wordcrawler looks for in the working
// directory and in the home directory.
const DefaultConfigFile = ".wordcrawler"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads a crawler configuration file.
//
// Unknown keys are an error: a misspelled "startPage" or "ignoreUrls" would
// otherwise be dropped without notice and the crawl would run with defaults.
// An empty file is a valid, empty configuration.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path comes from the user or the search path
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	cf := File{Sites: make(map[string]SiteConfig)}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// "sites:" with only comments below it decodes to nil.
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// configSearchPath lists the places an implicit configuration file may live,
// most specific first.
func configSearchPath() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return append(paths, filepath.Join(XDGConfigDir(), "config.yaml"))
}

// FindConfigFile returns the configuration file to load, or "" when there
// is none. An explicit configPath is used only if it exists; otherwise the
// working directory, the home directory and the XDG config directory are
// tried in that order.
func FindConfigFile(configPath string) string {
	candidates := configSearchPath()
	if configPath != "" {
		candidates = []string{configPath}
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
