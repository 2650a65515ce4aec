package runner

import (
	"sort"

	"github.com/stepline-ci/stepline/types"
)

// StepTestData is the canned execution data for one step when the run is
// driven in substitute mode: the return code to report, optional raw
// output, and per-namespace data handed to placeholders instead of real
// subprocess output.
type StepTestData struct {
	Retcode      int
	Output       string
	Placeholders map[string]map[string]any
}

// placeholderData returns the namespace's slice of the test data. In test
// mode an absent namespace yields an empty, non-nil map; live runs get nil.
func (d *StepTestData) placeholderData(namespace string) map[string]any {
	if d == nil {
		return nil
	}
	if data, ok := d.Placeholders[namespace]; ok {
		return data
	}
	return map[string]any{}
}

// TestData maps step names to their canned execution data. A nil TestData
// means the run executes steps for real.
type TestData map[string]*StepTestData

func (td TestData) pop(name string) *StepTestData {
	d := td[name]
	delete(td, name)
	if d == nil {
		return &StepTestData{}
	}
	return d
}

// RenderStep rewrites the step's command in place, expanding every
// placeholder into concrete tokens, and returns the placeholders grouped
// by their owning namespace for post-execution binding.
func RenderStep(step *types.Step, testData *StepTestData) map[string][]types.Placeholder {
	placeholders := make(map[string][]types.Placeholder)
	cmd := make([]types.Arg, 0, len(step.Cmd))
	for _, arg := range step.Cmd {
		ph, ok := arg.(types.Placeholder)
		if !ok {
			cmd = append(cmd, arg)
			continue
		}
		ns := ph.Namespace()
		for _, token := range ph.Render(testData.placeholderData(ns)) {
			cmd = append(cmd, types.String(token))
		}
		placeholders[ns] = append(placeholders[ns], ph)
	}
	step.Cmd = cmd
	return placeholders
}

// BindPlaceholders gives every rendered placeholder the chance to
// post-process the step's presentation and raw output, writing derived
// values into a fresh per-namespace accumulator that is then attached to
// the result under the namespace name.
func BindPlaceholders(result *types.StepResult, placeholders map[string][]types.Placeholder,
	rawOutput string, testData *StepTestData) {

	namespaces := make([]string, 0, len(placeholders))
	for ns := range placeholders {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		output := make(map[string]any)
		data := testData.placeholderData(ns)
		for _, ph := range placeholders[ns] {
			ph.StepFinished(result.Presentation(), output, rawOutput, data)
		}
		result.AttachOutput(ns, output)
	}
}
