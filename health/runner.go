package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single check when RunnerConfig.Timeout is unset.
const DefaultCheckTimeout = 10 * time.Second

// RunnerConfig configures the check runner.
type RunnerConfig struct {
	// Timeout is the maximum time a single check may take.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxConcurrency bounds how many checks of one run execute at once.
	// Default: 0 (unbounded)
	MaxConcurrency int

	// Hooks observe every check execution, in order.
	Hooks []Hook
}

// Hook observes individual check executions.
//
// Contract:
//   - Concurrency: hooks are called concurrently for checks of the same run.
//   - Ownership: CheckStarted may derive a new context; it is handed to the check.
type Hook interface {
	// CheckStarted is called before the check runs.
	CheckStarted(ctx context.Context, name string) context.Context

	// CheckFinished is called with the normalized result.
	CheckFinished(ctx context.Context, name string, result Result)
}

// Runner executes checkers concurrently and isolates their failures.
type Runner struct {
	config RunnerConfig
}

// NewRunner creates a new check runner.
func NewRunner(config ...RunnerConfig) *Runner {
	cfg := RunnerConfig{Timeout: DefaultCheckTimeout}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = DefaultCheckTimeout
		}
		if cfg.MaxConcurrency < 0 {
			cfg.MaxConcurrency = 0
		}
	}
	return &Runner{config: cfg}
}

// Config returns the runner configuration.
func (r *Runner) Config() RunnerConfig {
	return r.config
}

// Run executes all checkers concurrently and returns their results in input
// order. It returns once every check has finished, failed, or timed out.
// A failing check never affects its siblings.
func (r *Runner) Run(ctx context.Context, checkers []Checker) []Result {
	results := make([]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	var g errgroup.Group
	if r.config.MaxConcurrency > 0 {
		g.SetLimit(r.config.MaxConcurrency)
	}

	for i, checker := range checkers {
		g.Go(func() error {
			results[i] = r.runCheck(ctx, checker)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Evaluate runs checkers and reduces them into a report.
func (r *Runner) Evaluate(ctx context.Context, checkers []Checker) Report {
	return NewReport(Names(checkers), r.Run(ctx, checkers))
}

func (r *Runner) runCheck(parent context.Context, checker Checker) Result {
	name := checker.Name()
	start := time.Now()

	ctx, cancel := context.WithTimeout(parent, r.config.Timeout)
	defer cancel()

	for _, h := range r.config.Hooks {
		ctx = h.CheckStarted(ctx, name)
	}

	// Use a channel to handle timeout
	resultCh := make(chan Result, 1)

	go func() {
		resultCh <- safeCheck(ctx, checker)
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		select {
		case result = <-resultCh:
		default:
			result = Failed(deadlineError(parent, ctx))
		}
	}

	result = result.normalize()
	result.Duration = time.Since(start)

	done := context.WithoutCancel(ctx)
	for _, h := range r.config.Hooks {
		h.CheckFinished(done, name, result)
	}

	return result
}

// deadlineError distinguishes the runner's own per-check timeout from the
// caller giving up.
func deadlineError(parent, ctx context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrCheckTimeout
	}
	return ctx.Err()
}

func safeCheck(ctx context.Context, checker Checker) (result Result) {
	defer func() {
		if v := recover(); v != nil {
			result = Failed(fmt.Errorf("%w: %v", ErrCheckPanic, v))
		}
	}()
	return checker.Check(ctx)
}
