// Package stepline is the build-run orchestration service: it resolves a
// recipe, drives its steps through the runner, and reports the outcome to
// the console, the annotation stream, and metrics.
package stepline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/stepline-ci/stepline/annotation"
	"github.com/stepline-ci/stepline/exitcodes"
	"github.com/stepline-ci/stepline/logging"
	"github.com/stepline-ci/stepline/metrics"
	"github.com/stepline-ci/stepline/recipe"
	"github.com/stepline-ci/stepline/recipes"
	"github.com/stepline-ci/stepline/reporting"
	"github.com/stepline-ci/stepline/runner"
	"github.com/stepline-ci/stepline/types"
)

// stepline runs builds: one recipe resolution and step run per cycle.
type stepline struct {
	ctx      context.Context
	config   *Config
	version  string
	resolver *recipe.Resolver
	result   *RunResult

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

// RunResult is the outcome of one build run.
type RunResult struct {
	RunID    string
	Recipe   string
	ExitCode int
	Duration time.Duration
	History  *types.StepHistory
}

// Failed reports whether the run ended in a failed state.
func (r *RunResult) Failed() bool { return r.ExitCode != exitcodes.Success }

func (r *RunResult) String() string {
	status := "SUCCESS"
	if r.Failed() {
		status = "FAILURE"
	}
	return fmt.Sprintf("Run %s (recipe %q): %d steps, %s",
		r.RunID, r.Recipe, r.History.Len(), status)
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*stepline, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating stepline with config",
		"recipe", config.RecipeName,
		"recipesConfig", config.RecipesConfig,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	var resolverCfg *recipe.ResolverConfig
	if config.RecipesConfig != "" {
		var err error
		resolverCfg, err = recipe.LoadResolverConfig(config.RecipesConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipes config: %w", err)
		}
	}

	resolver, err := recipe.NewResolver(
		resolverCfg,
		version,
		[]*recipe.Registry{recipes.BuiltinRoot()},
		recipes.ModuleRegistries(),
		config.Log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe resolver: %w", err)
	}
	config.Log.Info("stepline.New: created recipe resolver")

	return &stepline{
		ctx:              ctx,
		config:           config,
		version:          version,
		resolver:         resolver,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the build immediately and then, unless in run-once mode,
// periodically at the configured interval.
func (s *stepline) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for setup errors
	defer func() {
		if r := recover(); r != nil {
			s.config.Log.Error("Runtime panic occurred", "error", r)
			os.Exit(exitcodes.SetupErr)
		}
	}()

	s.ctx = ctx
	s.done = make(chan struct{})
	s.running.Store(true)

	if s.config.RunOnce {
		s.config.Log.Info("Starting stepline in run-once mode")
	} else {
		s.config.Log.Info("Starting stepline in continuous mode", "interval", s.config.RunInterval)
	}

	err := s.runBuild()
	if err != nil {
		s.config.Log.Error("Setup error running build", "error", err)
		return cli.Exit(err.Error(), exitcodes.SetupErr)
	}

	if s.config.RunOnce {
		s.config.Log.Info("Build completed, exiting (run-once mode)")

		if s.result != nil && s.result.Failed() {
			s.config.Log.Warn("Run-once build completed with failures, returning exit code 1")
			return NewStepFailureError(s.result.String())
		}

		// Only need to call this when we're in run-once mode and the run passed
		go func() {
			s.shutdownCallback(nil)
		}()
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.config.Log.Debug("Starting periodic build runner goroutine", "interval", s.config.RunInterval)

		for {
			select {
			case <-time.After(s.config.RunInterval):
				if !s.running.Load() {
					s.config.Log.Debug("Service stopped, exiting periodic build runner")
					return
				}

				s.config.Log.Info("Running periodic build")
				if err := s.runBuild(); err != nil {
					s.config.Log.Error("Error running periodic build", "error", err)
				}

			case <-s.done:
				s.config.Log.Debug("Done signal received, stopping periodic build runner")
				return

			case <-ctx.Done():
				s.config.Log.Debug("Context canceled, stopping periodic build runner")
				s.running.Store(false)
				return
			}
		}
	}()
	s.config.Log.Debug("stepline started successfully")
	return nil
}

// runBuild performs one full build cycle: resolve the recipe under a
// synthetic setup step, generate its items, run them, and report.
func (s *stepline) runBuild() error {
	start := time.Now()
	stream := annotation.NewStream(os.Stdout)

	var fileLogger *logging.FileLogger
	if s.config.LogDir != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(s.config.LogDir, "", s.config.Log)
		if err != nil {
			return NewSetupError(fmt.Errorf("failed to create file logger: %w", err))
		}
	}

	run, err := runner.NewRunner(runner.Config{
		Log:        s.config.Log,
		Stream:     stream,
		Executor:   newWorkdirExecutor(s.config.Workdir, s.config.Log),
		Recipe:     s.config.RecipeName,
		FileLogger: fileLogger,
	})
	if err != nil {
		return NewSetupError(err)
	}

	items, err := s.setupBuild(stream, run)
	if err != nil {
		return err
	}

	exitCode, err := run.Run(s.ctx, items)
	if err != nil {
		// Contract violations and execution faults; the failed step is
		// already visible on the stream and in the history.
		s.config.Log.Error("Build run aborted", "error", err)
	}

	s.result = &RunResult{
		RunID:    run.RunID(),
		Recipe:   s.config.RecipeName,
		ExitCode: exitCode,
		Duration: time.Since(start),
		History:  run.History(),
	}

	metrics.RecordRunResult(s.config.RecipeName, run.RunID(), exitCode)
	if fileLogger != nil {
		if cerr := fileLogger.Complete(run.History(), exitCode); cerr != nil {
			s.config.Log.Error("Failed to write run summary", "error", cerr)
		}
		s.writeHTMLReport(fileLogger.RunDir())
	}

	formatter := NewConsoleResultFormatter(s.config.Log)
	if ferr := formatter.FormatResults(s.result); ferr != nil {
		s.config.Log.Error("Failed to print results", "error", ferr)
	}

	s.config.Log.Info("Build run completed",
		"run_id", run.RunID(), "recipe", s.config.RecipeName, "exit_code", exitCode)
	return nil
}

// writeHTMLReport renders the run report next to the step logs.
func (s *stepline) writeHTMLReport(dir string) {
	sink, err := reporting.NewHTMLSink()
	if err != nil {
		s.config.Log.Error("Failed to create HTML report sink", "error", err)
		return
	}
	report := reporting.NewRunReport(
		s.result.RunID, s.result.Recipe, s.result.ExitCode, s.result.Duration, s.result.History)
	path, err := sink.Write(dir, report)
	if err != nil {
		s.config.Log.Error("Failed to write HTML report", "error", err)
		return
	}
	s.config.Log.Info("Wrote HTML report", "path", path)
}

// setupBuild resolves the recipe and generates its step items under a
// synthetic "setup_build" step, so resolution failures are visible on the
// waterfall like any other step.
func (s *stepline) setupBuild(stream *annotation.Stream, run *runner.Runner) ([]runner.Item, error) {
	annot := stream.OpenStep("setup_build")
	defer annot.Close()
	annot.StepText(fmt.Sprintf("running recipe: %s", s.config.RecipeName))

	rec, err := s.resolver.Resolve(s.config.RecipeName)
	if err != nil {
		annot.StepFailure()
		return nil, NewSetupError(err)
	}

	rctx := &recipe.Context{
		Properties: recipe.MergeProperties(s.config.FactoryProperties, s.config.BuildProperties),
		History:    run.History(),
	}
	items, err := rec.GenSteps(rctx)
	if err != nil {
		annot.StepException()
		return nil, NewSetupError(fmt.Errorf("recipe %q failed to generate steps: %w", rec.Name, err))
	}

	stream.HonorZeroReturnCode()
	return items, nil
}

// Stop stops the stepline service.
func (s *stepline) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping stepline")

	if !s.running.Load() {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	s.running.Store(false)

	s.config.Log.Debug("Sending done signal to goroutines")
	close(s.done)

	s.config.Log.Info("stepline stopped successfully")
	return nil
}

// Stopped returns true if the stepline service is stopped.
func (s *stepline) Stopped() bool {
	return !s.running.Load()
}

// Result returns the outcome of the most recent build run, nil before the
// first run has finished.
func (s *stepline) Result() *RunResult {
	return s.result
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (s *stepline) WaitForShutdown(ctx context.Context) error {
	s.config.Log.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Log.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		s.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
