package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/wordcrawler/internal/model"
)

// DBFileName is the database file created inside the database directory.
const DBFileName = "wordcrawler.db"

// storedTimeFormat is fixed-width so that ORDER BY on the text column sorts
// chronologically.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrNoResultID is returned when saving a result without an ID.
	ErrNoResultID = errors.New("crawl result has no ID")

	// ErrAmbiguousID is returned when a run ID prefix matches several runs.
	ErrAmbiguousID = errors.New("run ID prefix matches more than one run")
)

// ResultDB provides SQLite-based storage for crawl results.
//
// Design decision: We use a single database file for every run rather than
// one file per seed. Comparing runs of the same seed and listing all seeds
// are then plain queries.
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *ResultDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ResultDB) createTables() error {
	schema := `
	-- One row per crawl
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		elapsed_ns INTEGER NOT NULL,
		max_depth INTEGER NOT NULL,
		urls_visited INTEGER NOT NULL,
		popular_count INTEGER NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0,
		seeds TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Seeds of each run, for per-seed history
	CREATE TABLE IF NOT EXISTS run_seeds (
		run_id TEXT NOT NULL,
		seed TEXT NOT NULL,
		PRIMARY KEY (run_id, seed)
	);

	CREATE INDEX IF NOT EXISTS idx_seeds_seed ON run_seeds(seed);

	CREATE TABLE IF NOT EXISTS word_counts (
		run_id TEXT NOT NULL,
		word TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, word)
	);

	CREATE TABLE IF NOT EXISTS visited_urls (
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, url)
	);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlResult stores result in a single transaction.
func (rdb *ResultDB) SaveCrawlResult(ctx context.Context, result *model.CrawlResult) (err error) {
	if result == nil || result.ID == "" {
		return ErrNoResultID
	}

	seedsJSON, err := json.Marshal(result.Seeds)
	if err != nil {
		return fmt.Errorf("failed to serialize seeds: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (id, started_at, elapsed_ns, max_depth, urls_visited, popular_count, timed_out, seeds)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		result.StartedAt.UTC().Format(storedTimeFormat),
		int64(result.Elapsed),
		result.MaxDepth,
		result.URLsVisited,
		len(result.PopularWords),
		result.TimedOut,
		string(seedsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	if err = insertEach(ctx, tx, "INSERT OR IGNORE INTO run_seeds (run_id, seed) VALUES (?, ?)", result.Seeds,
		func(seed string) []any { return []any{result.ID, seed} }); err != nil {
		return fmt.Errorf("failed to save seeds: %w", err)
	}

	words := make([]string, 0, len(result.WordCounts))
	for word := range result.WordCounts {
		words = append(words, word)
	}
	if err = insertEach(ctx, tx, "INSERT INTO word_counts (run_id, word, count) VALUES (?, ?, ?)", words,
		func(word string) []any { return []any{result.ID, word, result.WordCounts[word]} }); err != nil {
		return fmt.Errorf("failed to save word counts: %w", err)
	}

	if err = insertEach(ctx, tx, "INSERT OR IGNORE INTO visited_urls (run_id, url, failed) VALUES (?, ?, 0)", result.VisitedURLs,
		func(u string) []any { return []any{result.ID, u} }); err != nil {
		return fmt.Errorf("failed to save visited urls: %w", err)
	}
	if err = insertEach(ctx, tx, `
	INSERT INTO visited_urls (run_id, url, failed) VALUES (?, ?, 1)
	ON CONFLICT(run_id, url) DO UPDATE SET failed = 1
	`, result.FetchErrors,
		func(u string) []any { return []any{result.ID, u} }); err != nil {
		return fmt.Errorf("failed to save fetch errors: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl result: %w", err)
	}
	return nil
}

// insertEach runs one prepared statement per item.
func insertEach(ctx context.Context, tx *sql.Tx, query string, items []string, args func(string) []any) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, args(item)...); err != nil {
			return err
		}
	}
	return nil
}

// GetCrawlResult loads a complete result by ID.
// It returns nil without an error when no run has that ID.
func (rdb *ResultDB) GetCrawlResult(ctx context.Context, id string) (*model.CrawlResult, error) {
	var (
		result       model.CrawlResult
		startedAt    string
		elapsed      int64
		popularCount int
		seedsJSON    string
	)

	err := rdb.db.QueryRowContext(ctx, `
	SELECT id, started_at, elapsed_ns, max_depth, urls_visited, popular_count, timed_out, seeds
	FROM crawl_runs
	WHERE id = ?
	`, id).Scan(
		&result.ID,
		&startedAt,
		&elapsed,
		&result.MaxDepth,
		&result.URLsVisited,
		&popularCount,
		&result.TimedOut,
		&seedsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	result.StartedAt = parseTimestamp(startedAt)
	result.Elapsed = time.Duration(elapsed)
	if err := json.Unmarshal([]byte(seedsJSON), &result.Seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seeds: %w", err)
	}

	counts, err := rdb.wordCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	result.SetWordCounts(counts, popularCount)

	if result.VisitedURLs, err = rdb.urls(ctx, id, false); err != nil {
		return nil, err
	}
	if result.FetchErrors, err = rdb.urls(ctx, id, true); err != nil {
		return nil, err
	}

	return &result, nil
}

func (rdb *ResultDB) wordCounts(ctx context.Context, id string) (map[string]int, error) {
	rows, err := rdb.db.QueryContext(ctx, "SELECT word, count FROM word_counts WHERE run_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get word counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var word string
		var n int
		if err := rows.Scan(&word, &n); err != nil {
			return nil, fmt.Errorf("failed to scan word count: %w", err)
		}
		counts[word] = n
	}
	return counts, rows.Err()
}

// urls returns the visited URLs of a run, or only the failed ones when failedOnly is set.
func (rdb *ResultDB) urls(ctx context.Context, id string, failedOnly bool) ([]string, error) {
	query := "SELECT url FROM visited_urls WHERE run_id = ?"
	if failedOnly {
		query += " AND failed = 1"
	}
	query += " ORDER BY url"

	rows, err := rdb.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ListRuns returns summaries of every run that used seed, newest first.
// An empty seed lists all runs.
func (rdb *ResultDB) ListRuns(ctx context.Context, seed string) ([]model.RunSummary, error) {
	return rdb.LatestRuns(ctx, seed, 0)
}

// LatestRuns returns at most n summaries, newest first. n <= 0 means no limit.
func (rdb *ResultDB) LatestRuns(ctx context.Context, seed string, n int) ([]model.RunSummary, error) {
	query := `
	SELECT r.id, r.seeds, r.started_at, r.elapsed_ns, r.max_depth, r.urls_visited, r.timed_out,
		(SELECT COUNT(*) FROM word_counts w WHERE w.run_id = r.id),
		(SELECT COALESCE(SUM(w.count), 0) FROM word_counts w WHERE w.run_id = r.id)
	FROM crawl_runs r
	`
	args := make([]any, 0, 2)

	if seed != "" {
		query += " WHERE r.id IN (SELECT run_id FROM run_seeds WHERE seed = ?)"
		args = append(args, seed)
	}
	query += " ORDER BY r.started_at DESC, r.id"
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []model.RunSummary
	for rows.Next() {
		var (
			summary   model.RunSummary
			seedsJSON string
			startedAt string
			elapsed   int64
		)
		if err := rows.Scan(
			&summary.ID,
			&seedsJSON,
			&startedAt,
			&elapsed,
			&summary.MaxDepth,
			&summary.URLsVisited,
			&summary.TimedOut,
			&summary.DistinctWords,
			&summary.TotalWords,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		summary.StartedAt = parseTimestamp(startedAt)
		summary.Elapsed = time.Duration(elapsed)
		if err := json.Unmarshal([]byte(seedsJSON), &summary.Seeds); err != nil {
			summary.Seeds = nil // Keep listing even if one row is malformed
		}

		results = append(results, summary)
	}

	return results, rows.Err()
}

// ListSeeds returns every seed that has at least one stored run.
func (rdb *ResultDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, "SELECT DISTINCT seed FROM run_seeds ORDER BY seed")
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// DeleteRun removes a run and everything stored with it.
// It reports whether a run was deleted.
func (rdb *ResultDB) DeleteRun(ctx context.Context, id string) (deleted bool, err error) {
	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"word_counts", "visited_urls", "run_seeds"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil { //nolint:gosec // table names are constants
			return false, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM crawl_runs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n > 0, nil
}

// FindRunByPrefix resolves an abbreviated run ID.
// It returns "" when nothing matches and an error when the prefix is ambiguous.
func (rdb *ResultDB) FindRunByPrefix(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", nil
	}

	rows, err := rdb.db.QueryContext(ctx, "SELECT id FROM crawl_runs WHERE id LIKE ? || '%' ESCAPE '\\' LIMIT 2",
		escapeLike(prefix))
	if err != nil {
		return "", fmt.Errorf("failed to find run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", nil
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %q", ErrAmbiguousID, prefix)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimeFormat,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
