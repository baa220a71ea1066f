package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/wordcrawler/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the same result.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; non-critical failures
	// should be logged by the step itself and return nil.
	Do(ctx context.Context, result *model.CrawlResult) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The errors of all failed steps are joined
// and returned once every step has run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Design decision: We check the context before each step rather than
// during, because steps should handle their own timeouts. Callers that
// must deliver a result after an interrupt pass context.WithoutCancel.
//
// Step errors are wrapped with the step name.
func (p *Pipeline) Execute(ctx context.Context, result *model.CrawlResult) error {
	var errs []error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			return errors.Join(append(errs, err)...)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"run", result.ID,
		)

		if err := step.Do(ctx, result); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run", result.ID,
				"error", err,
			)

			err = fmt.Errorf("%s: %w", step.Name(), err)
			if !p.continueOnError {
				return err
			}
			errs = append(errs, err)
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"run", result.ID,
		)
	}

	return errors.Join(errs...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
