package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stepline-ci/stepline/annotation"
	"github.com/stepline-ci/stepline/exitcodes"
	"github.com/stepline-ci/stepline/logging"
	"github.com/stepline-ci/stepline/metrics"
	"github.com/stepline-ci/stepline/types"
)

// Config carries the collaborators of a Runner.
type Config struct {
	Log    log.Logger
	Stream *annotation.Stream

	// Executor runs subprocesses. Defaults to the os/exec executor.
	Executor Executor

	// Recipe names the recipe being run, for metrics only.
	Recipe string

	// TestData switches the run into substitute mode: steps are not
	// executed, their canned return codes and outputs are used instead.
	TestData TestData

	// FileLogger, if set, receives every finalized step result and its raw
	// output.
	FileLogger *logging.FileLogger
}

// Runner drives a recipe's step stream to completion. It owns the run's
// StepHistory and the cumulative failure state; both have the runner as
// their single writer and must not be touched concurrently.
type Runner struct {
	log        log.Logger
	stream     *annotation.Stream
	executor   Executor
	recipe     string
	testData   TestData
	fileLogger *logging.FileLogger
	tracer     trace.Tracer

	runID   string
	history *types.StepHistory
	failed  bool
}

// NewRunner validates the config and returns a runner ready for one run.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Stream == nil {
		return nil, errors.New("annotation stream is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Executor == nil {
		cfg.Executor = NewExecutor(cfg.Log)
	}
	runID := uuid.New().String()
	if cfg.FileLogger != nil {
		runID = cfg.FileLogger.RunID()
	}
	return &Runner{
		log:        cfg.Log,
		stream:     cfg.Stream,
		executor:   cfg.Executor,
		recipe:     cfg.Recipe,
		testData:   cfg.TestData,
		fileLogger: cfg.FileLogger,
		tracer:     otel.Tracer("step runner"),
		runID:      runID,
		history:    types.NewStepHistory(),
	}, nil
}

// RunID returns the run's unique identifier.
func (r *Runner) RunID() string { return r.runID }

// History returns the run's step history. Valid for introspection after
// Run returns, including when Run failed partway.
func (r *Runner) History() *types.StepHistory { return r.history }

// Failed reports the run's cumulative failure state.
func (r *Runner) Failed() bool { return r.failed }

// Run executes the recipe's top-level items in order and returns the run
// exit code: exitcodes.Success when every step succeeded, or
// exitcodes.StepFailure when the run ended in a failed state.
//
// Failure is sticky: a step with a non-zero return code and no
// continue-on-failure declaration moves the run to failed and it stays
// there. Steps are never skipped because of earlier failures; only
// generator continuation is gated, on the keep-going declaration of the
// most recently produced batch.
//
// A returned error is fatal: a contract violation in recipe code or an
// execution fault that aborted the run.
func (r *Runner) Run(ctx context.Context, items []Item) (int, error) {
	r.log.Debug("Running steps", "run_id", r.runID, "items", len(items))

	for _, item := range items {
		if item.Gen != nil {
			if item.Step != nil || item.Seq != nil {
				return exitcodes.StepFailure, fmt.Errorf("%w: generator item with extra shape", ErrInvalidStepShape)
			}
			if err := r.consumeProducer(ctx, item.Gen); err != nil {
				return exitcodes.StepFailure, err
			}
			continue
		}
		steps, err := Flatten(item)
		if err != nil {
			return exitcodes.StepFailure, err
		}
		for _, step := range steps {
			if err := r.runStep(ctx, step); err != nil {
				return exitcodes.StepFailure, err
			}
		}
	}

	if err := r.checkUnconsumedTestData(); err != nil {
		return exitcodes.StepFailure, err
	}

	if r.failed {
		return exitcodes.StepFailure, nil
	}
	return exitcodes.Success, nil
}

// consumeProducer pulls a generator to exhaustion. Once the run has
// failed, pulling continues only while the most recently produced steps
// all declared keep-going.
func (r *Runner) consumeProducer(ctx context.Context, gen Producer) error {
	keepGoing := true
	for {
		if r.failed && !keepGoing {
			r.log.Debug("Stopping generator after failure", "run_id", r.runID)
			return nil
		}
		item, ok := gen.Next(r.failed)
		if !ok {
			return nil
		}
		if item.Gen != nil {
			return fmt.Errorf("%w: generator yielded a generator", ErrInvalidStepShape)
		}
		steps, err := Flatten(item)
		if err != nil {
			return err
		}
		for _, step := range steps {
			if err := r.runStep(ctx, step); err != nil {
				return err
			}
		}
		keepGoing = len(steps) > 0
		for _, step := range steps {
			if !step.KeepGoing {
				keepGoing = false
				break
			}
		}
	}
}

// runStep performs the full per-step procedure: render placeholders,
// reject duplicate names, execute (or substitute), build and decorate the
// result, bind placeholders, finalize the presentation into the annotation
// stream, record history, and fold the outcome into the failure state.
func (r *Runner) runStep(ctx context.Context, step *types.Step) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("step %s", step.Name))
	defer span.End()

	start := time.Now()
	testMode := r.testData != nil
	var testData *StepTestData
	if testMode {
		testData = r.testData.pop(step.Name)
	}

	placeholders := RenderStep(step, testData)

	if r.history.Contains(step.Name) {
		return fmt.Errorf("%w: step %q is already in the step history", types.ErrDuplicateStep, step.Name)
	}

	for _, name := range step.SeedSteps {
		r.stream.SeedStep(name)
	}
	annot := r.stream.OpenStep(step.Name)
	defer annot.Close()

	var retcode int
	var rawOutput string
	if testMode {
		retcode = testData.Retcode
		rawOutput = testData.Output
	} else {
		var err error
		retcode, rawOutput, err = r.executor.Run(ctx, step, annot)
		if err != nil {
			// The step could not be run at all. Report the exception and
			// abort the run; there is no meaningful way to continue.
			r.abortStep(step, annot, err)
			return err
		}
	}

	result := types.NewStepResult(step, retcode)
	if retcode != 0 {
		if serr := result.Presentation().SetStatus(types.StatusFailure); serr != nil {
			return serr
		}
		if !testMode {
			// Don't clutter canned-run expectations with this line.
			annot.Emit(fmt.Sprintf("step returned non-zero exit code: %d", retcode))
		}
	}

	if step.Followup != nil {
		step.Followup(result)
	}

	BindPlaceholders(result, placeholders, rawOutput, testData)

	for ns := range placeholders {
		if out, ok := result.Output(ns); ok {
			if n, ok := out["parse_errors"].(int); ok {
				metrics.RecordParseErrors(r.runID, step.Name, n)
			}
		}
	}

	result.Presentation().Finalize(annot)
	if err := r.history.Insert(result); err != nil {
		return err
	}
	if r.fileLogger != nil {
		if err := r.fileLogger.LogStep(result, rawOutput); err != nil {
			r.log.Error("Failed to write step logs", "step", step.Name, "err", err)
			metrics.RecordErrorDetails("step_log_write", err)
		}
	}

	status := result.Presentation().Status()
	metrics.RecordStep(r.recipe, r.runID, step.Name, status, time.Since(start))
	r.log.Info("Step finished",
		"run_id", r.runID,
		"step", step.Name,
		"retcode", retcode,
		"status", statusLabel(status))

	if retcode != 0 && !step.ContinueOnFailure {
		r.failed = true
	}
	return nil
}

// abortStep records an EXCEPTION result for a step that could not be
// executed, so the failure is visible in the history and on the stream.
func (r *Runner) abortStep(step *types.Step, annot *annotation.Step, cause error) {
	result := types.NewStepResult(step, -1)
	_ = result.Presentation().SetStatus(types.StatusException)
	_ = result.Presentation().SetStepText(cause.Error())
	result.Presentation().Finalize(annot)
	if err := r.history.Insert(result); err != nil {
		r.log.Error("Failed to record aborted step", "step", step.Name, "err", err)
	}
	metrics.RecordErrorDetails("step_execution", cause)
	r.failed = true
}

// checkUnconsumedTestData catches canned data for steps that never ran,
// which means the expectations no longer match the recipe.
func (r *Runner) checkUnconsumedTestData() error {
	if len(r.testData) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.testData))
	for name := range r.testData {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("unconsumed test data for steps %v", names)
}

func statusLabel(s types.Status) string {
	if s == types.StatusUnknown {
		return "SUCCESS"
	}
	return string(s)
}
