// Package reporting renders a completed build run into human-readable
// artifacts: an HTML report stored next to the run's step logs.
package reporting

import (
	"time"

	"github.com/stepline-ci/stepline/types"
)

// StepReport is one step's row in the run report.
type StepReport struct {
	Index    int
	Name     string
	RetCode  int
	Status   types.Status
	StepText string
	Summary  string
	Logs     []LogReport
}

// LogReport is one named log attached to a step.
type LogReport struct {
	Name  string
	Lines []string
}

// RunReport is the renderable model of one build run.
type RunReport struct {
	RunID       string
	Recipe      string
	ExitCode    int
	Duration    time.Duration
	GeneratedAt time.Time
	Steps       []StepReport
}

// Failed reports whether the run ended in a failed state.
func (r *RunReport) Failed() bool { return r.ExitCode != 0 }

// FailedSteps counts steps that failed or hit an exception.
func (r *RunReport) FailedSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == types.StatusFailure || s.Status == types.StatusException {
			n++
		}
	}
	return n
}

// NewRunReport builds the report model from a run's step history.
func NewRunReport(runID, recipe string, exitCode int, duration time.Duration,
	history *types.StepHistory) *RunReport {

	report := &RunReport{
		RunID:       runID,
		Recipe:      recipe,
		ExitCode:    exitCode,
		Duration:    duration,
		GeneratedAt: time.Now(),
	}
	if history == nil {
		return report
	}

	for i := 0; i < history.Len(); i++ {
		res := history.Nth(i)
		if res == nil {
			continue
		}
		pres := res.Presentation()

		step := StepReport{
			Index:    i + 1,
			Name:     res.Name(),
			RetCode:  res.RetCode(),
			Status:   pres.Status(),
			StepText: pres.StepText(),
			Summary:  pres.SummaryText(),
		}
		for _, logName := range pres.LogNames() {
			step.Logs = append(step.Logs, LogReport{
				Name:  logName,
				Lines: pres.Log(logName),
			})
		}
		report.Steps = append(report.Steps, step)
	}
	return report
}
