package recipe

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/stepline-ci/stepline/types"
)

// jsonTestPath stands in for the temp file when a run uses canned data.
const jsonTestPath = "/path/to/tmp/json"

// JSONOutput is a placeholder that expands into the path of a scratch file
// the step writes its JSON result to. After the step finishes the file is
// parsed, removed, and the decoded value attached to the result under the
// "json" namespace as "output".
type JSONOutput struct {
	types.PlaceholderArg

	// AddLog mirrors the decoded JSON into a "json.output" log on the
	// step's presentation.
	AddLog bool

	path string
}

var _ types.Placeholder = (*JSONOutput)(nil)

// Namespace returns "json".
func (*JSONOutput) Namespace() string { return "json" }

// Render expands into the single scratch-file path token. Live runs get a
// real temp file; canned runs get a stable fake path.
func (p *JSONOutput) Render(testData map[string]any) []string {
	if testData != nil {
		p.path = jsonTestPath
		return []string{p.path}
	}
	f, err := os.CreateTemp("", "stepline-json-*.json")
	if err != nil {
		// Surfaced when the subprocess fails to write the bogus path.
		p.path = ""
		return []string{jsonTestPath}
	}
	p.path = f.Name()
	f.Close() //nolint:errcheck
	return []string{p.path}
}

// StepFinished harvests the step's JSON result. Canned runs take the value
// from the test data's "output" key; live runs read, parse and remove the
// scratch file. A missing or malformed file attaches a nil output and a
// note on the presentation rather than failing the step.
func (p *JSONOutput) StepFinished(pres *types.Presentation, output map[string]any,
	rawOutput string, testData map[string]any) {

	var value any
	if testData != nil {
		value = testData["output"]
	} else {
		raw, err := os.ReadFile(p.path)
		if err != nil {
			pres.AddLog("json.output", "no JSON output produced: "+err.Error()) //nolint:errcheck
			output["output"] = nil
			return
		}
		os.Remove(p.path) //nolint:errcheck
		if err := json.Unmarshal(raw, &value); err != nil {
			pres.AddLog("json.output", "malformed JSON output: "+err.Error()) //nolint:errcheck
			output["output"] = nil
			return
		}
	}
	output["output"] = value

	if p.AddLog {
		pretty, err := json.MarshalIndent(value, "", "  ")
		if err == nil {
			pres.AddLog("json.output", strings.Split(string(pretty), "\n")...) //nolint:errcheck
		}
	}
}
