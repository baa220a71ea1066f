package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/wordcrawler/internal/database"
	"github.com/nao1215/wordcrawler/internal/model"
	"github.com/nao1215/wordcrawler/internal/profiler"
	"github.com/nao1215/wordcrawler/internal/report"
)

// WriterFactory builds the report writer for an output stream.
type WriterFactory func(w io.Writer) report.Writer

// ReportStep writes the result as a report.
// The report goes to path when set and to the fallback writer otherwise.
//
// A report that cannot be written is the one failure the user must hear
// about, so ReportStep returns its errors.
type ReportStep struct {
	path      string
	fallback  io.Writer
	newWriter WriterFactory
}

// NewReportStep creates a report step. An empty path writes to fallback.
func NewReportStep(path string, fallback io.Writer, newWriter WriterFactory) *ReportStep {
	return &ReportStep{
		path:      path,
		fallback:  fallback,
		newWriter: newWriter,
	}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report, truncating any existing file at path.
func (s *ReportStep) Do(_ context.Context, result *model.CrawlResult) (err error) {
	output := s.fallback
	if s.path != "" {
		f, ferr := createOutputFile(s.path, os.O_TRUNC)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		output = f
	}

	_, err = s.newWriter(output).Write(result)
	return err
}

// ProfileStep appends the timing profile of the run to a file.
// Failures are logged, never returned.
type ProfileStep struct {
	path   string
	prof   *profiler.Profiler
	logger *slog.Logger
}

// NewProfileStep creates a profile step. An empty path makes the step a no-op.
func NewProfileStep(path string, prof *profiler.Profiler, logger *slog.Logger) *ProfileStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileStep{
		path:   path,
		prof:   prof,
		logger: logger,
	}
}

// Name returns the step name.
func (s *ProfileStep) Name() string {
	return "profile"
}

// Do appends the profile to the file.
func (s *ProfileStep) Do(_ context.Context, _ *model.CrawlResult) error {
	if s.path == "" || s.prof == nil {
		return nil
	}
	if err := s.write(); err != nil {
		s.logger.Error("failed to write profile", "path", s.path, "error", err)
	}
	return nil
}

func (s *ProfileStep) write() (err error) {
	f, err := createOutputFile(s.path, os.O_APPEND)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = s.prof.WriteTo(f)
	return err
}

// SaveStep stores the result in the database under a directory.
// Failures are logged, never returned: the report has already been
// delivered by the time the result is saved.
type SaveStep struct {
	dbDir  string
	opts   database.Options
	logger *slog.Logger
}

// NewSaveStep creates a save step for the database in dbDir.
func NewSaveStep(dbDir string, logger *slog.Logger) *SaveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveStep{
		dbDir:  dbDir,
		opts:   database.DefaultOptions(),
		logger: logger,
	}
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves the result.
func (s *SaveStep) Do(ctx context.Context, result *model.CrawlResult) error {
	path, err := s.save(ctx, result)
	if err != nil {
		s.logger.Error("failed to save crawl result", "error", err)
		return nil
	}

	s.logger.Info("crawl result saved to database", "id", result.ID, "path", path)
	return nil
}

func (s *SaveStep) save(ctx context.Context, result *model.CrawlResult) (string, error) {
	db, err := database.Open(s.dbDir, s.opts)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.SaveCrawlResult(ctx, result); err != nil {
		return "", err
	}
	return db.Path(), nil
}

// createOutputFile opens path for writing, creating parent directories.
// Files are created with 0600 because reports and profiles may reveal
// which private pages the user crawled.
func createOutputFile(path string, flag int) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|flag, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// DefaultPipelineConfig selects the steps of DefaultPipeline.
type DefaultPipelineConfig struct {
	// ReportPath is the report file; empty writes to Stdout.
	ReportPath string

	// Stdout receives the report when ReportPath is empty.
	Stdout io.Writer

	// NewWriter builds the report writer for the chosen format.
	NewWriter WriterFactory

	// ProfilePath is the profile file; empty skips the profile.
	ProfilePath string

	// Profiler holds the timings of the run.
	Profiler *profiler.Profiler

	// SaveToDB adds the save step.
	SaveToDB bool

	// DBDir is the database directory used by the save step.
	DBDir string

	// Logger is shared by the pipeline and its steps.
	Logger *slog.Logger
}

// DefaultPipeline creates the delivery pipeline of a crawl:
// report, then profile, then save.
func DefaultPipeline(cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	if cfg.Logger != nil {
		opts = append([]Option{WithLogger(cfg.Logger)}, opts...)
	}
	p := New(opts...)

	p.AddSteps(
		NewReportStep(cfg.ReportPath, cfg.Stdout, cfg.NewWriter),
		NewProfileStep(cfg.ProfilePath, cfg.Profiler, cfg.Logger),
	)
	if cfg.SaveToDB {
		p.AddStep(NewSaveStep(cfg.DBDir, cfg.Logger))
	}

	return p
}
