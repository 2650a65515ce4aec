package gtest

import (
	"fmt"
	"strings"

	"github.com/stepline-ci/stepline/types"
)

// ResultsPlaceholder attaches googletest log analysis to a step. It adds no
// command tokens; after the step runs, its output is fed through a
// LogParser and the verdict is written onto the step's presentation and
// attached under the "gtest" namespace.
type ResultsPlaceholder struct {
	types.PlaceholderArg

	// WarnOnly downgrades a failing verdict to a warning, for steps whose
	// failures must not fail the build.
	WarnOnly bool
}

var _ types.Placeholder = (*ResultsPlaceholder)(nil)

// Namespace returns "gtest".
func (*ResultsPlaceholder) Namespace() string { return "gtest" }

// Render contributes no tokens; the test binary's stdout is the input.
func (*ResultsPlaceholder) Render(testData map[string]any) []string { return nil }

// StepFinished parses the step's raw output (or the canned "raw_log" test
// data) and records the verdict: failed tests get per-test failure logs,
// an incomplete or failing run marks the step failed (or warned, for
// WarnOnly), and the parser itself is attached for recipe followups.
func (p *ResultsPlaceholder) StepFinished(pres *types.Presentation, output map[string]any,
	rawOutput string, testData map[string]any) {

	parser := NewLogParser()
	raw := rawOutput
	if testData != nil {
		raw, _ = testData["raw_log"].(string)
	}
	if raw != "" {
		for _, line := range strings.Split(raw, "\n") {
			parser.ProcessLine(line)
		}
	}

	failed := parser.FailedTests(false, false)
	output["parser"] = parser
	output["failed_tests"] = failed
	output["completed"] = parser.Completed()

	for _, test := range failed {
		pres.AddLog(test, parser.FailureDescription(test)...) //nolint:errcheck
	}
	if errs := parser.ParsingErrors(); len(errs) > 0 {
		pres.AddLog("log parsing error(s)", errs...) //nolint:errcheck
		output["parse_errors"] = len(errs)
	}

	if !parser.CompletedWithoutFailure() {
		status := types.StatusFailure
		if p.WarnOnly {
			status = types.StatusWarning
		}
		pres.SetStatus(status) //nolint:errcheck

		switch {
		case !parser.Completed():
			pres.SetSummaryText("test run did not complete") //nolint:errcheck
		case len(failed) > 0:
			pres.SetSummaryText(fmt.Sprintf("failed %d", len(failed))) //nolint:errcheck
		}
	}
}
