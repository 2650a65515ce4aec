// Package logging persists per-step artifacts of a build run: the raw
// subprocess output (ANSI-stripped) and the finalized presentation logs,
// laid out under one run directory for later inspection.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/stepline-ci/stepline/types"
)

const (
	// RunDirectoryPrefix is the standardized prefix for run directories.
	RunDirectoryPrefix = "buildrun-"

	RawOutputFilename = "stdout.log"
	SummaryFilename   = "summary.log"
	FailedDirName     = "failed"
)

// FileLogger writes step output to files under <baseDir>/buildrun-<runID>/.
type FileLogger struct {
	baseDir string
	runDir  string
	runID   string
	log     log.Logger
	mu      sync.Mutex
}

// NewFileLogger creates the run directory and returns a logger for it.
// An empty runID gets a fresh UUID.
func NewFileLogger(baseDir, runID string, logger log.Logger) (*FileLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if runID == "" {
		runID = uuid.New().String()
	}
	if logger == nil {
		logger = log.New()
	}
	runDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", runDir, err)
	}
	return &FileLogger{
		baseDir: baseDir,
		runDir:  runDir,
		runID:   runID,
		log:     logger,
	}, nil
}

// RunID returns the run identifier the logger was created with.
func (l *FileLogger) RunID() string { return l.runID }

// RunDir returns the directory all artifacts for this run live under.
func (l *FileLogger) RunDir() string { return l.runDir }

// LogStep writes the step's raw output and presentation logs. Failed and
// excepted steps are additionally linked under the failed/ directory so
// they are easy to find on a big build.
func (l *FileLogger) LogStep(result *types.StepResult, rawOutput string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stepDir := filepath.Join(l.runDir, sanitizeName(result.Name()))
	if err := os.MkdirAll(stepDir, 0755); err != nil {
		return fmt.Errorf("failed to create step directory %s: %w", stepDir, err)
	}

	clean := stripansi.Strip(rawOutput)
	if err := os.WriteFile(filepath.Join(stepDir, RawOutputFilename), []byte(clean), 0644); err != nil {
		return fmt.Errorf("failed to write raw output: %w", err)
	}

	pres := result.Presentation()
	for _, name := range pres.LogNames() {
		content := strings.Join(pres.Log(name), "\n") + "\n"
		path := filepath.Join(stepDir, sanitizeName(name)+".log")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write log %q: %w", name, err)
		}
	}

	switch pres.Status() {
	case types.StatusFailure, types.StatusException:
		failedDir := filepath.Join(l.runDir, FailedDirName)
		if err := os.MkdirAll(failedDir, 0755); err != nil {
			return fmt.Errorf("failed to create failed directory: %w", err)
		}
		note := fmt.Sprintf("step: %s\nstatus: %s\nretcode: %d\nsummary: %s\n",
			result.Name(), pres.Status(), result.RetCode(), pres.SummaryText())
		path := filepath.Join(failedDir, sanitizeName(result.Name())+".log")
		if err := os.WriteFile(path, []byte(note), 0644); err != nil {
			return fmt.Errorf("failed to write failure note: %w", err)
		}
	}

	l.log.Debug("Wrote step logs", "step", result.Name(), "dir", stepDir)
	return nil
}

// Complete writes the run summary once all steps have been recorded.
func (l *FileLogger) Complete(history *types.StepHistory, exitCode int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "run: %s\nexit code: %d\nsteps: %d\n\n", l.runID, exitCode, history.Len())
	for _, name := range history.Names() {
		result, _ := history.Get(name)
		status := result.Presentation().Status()
		if status == types.StatusUnknown {
			status = types.StatusSuccess
		}
		fmt.Fprintf(&b, "%-10s retcode=%-4d %s\n", status, result.RetCode(), name)
	}

	path := filepath.Join(l.runDir, SummaryFilename)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// sanitizeName makes a step or log name safe as a path component.
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
	)
	return replacer.Replace(name)
}
