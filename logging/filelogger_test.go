package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepline-ci/stepline/types"
)

func TestFileLoggerWritesStepArtifacts(t *testing.T) {
	base := t.TempDir()
	l, err := NewFileLogger(base, "test-run", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-run", l.RunID())
	assert.DirExists(t, l.RunDir())

	result := types.NewStepResult(&types.Step{Name: "unit tests"}, 1)
	require.NoError(t, result.Presentation().SetStatus(types.StatusFailure))
	require.NoError(t, result.Presentation().SetSummaryText("1 test failed"))
	require.NoError(t, result.Presentation().AddLog("failures", "Foo.Bar: ", "boom"))

	raw := "plain \x1b[31mred\x1b[0m output\n"
	require.NoError(t, l.LogStep(result, raw))

	stepDir := filepath.Join(l.RunDir(), "unit_tests")
	out, err := os.ReadFile(filepath.Join(stepDir, RawOutputFilename))
	require.NoError(t, err)
	assert.Equal(t, "plain red output\n", string(out), "ANSI escapes are stripped")

	failures, err := os.ReadFile(filepath.Join(stepDir, "failures.log"))
	require.NoError(t, err)
	assert.Equal(t, "Foo.Bar: \nboom\n", string(failures))

	note, err := os.ReadFile(filepath.Join(l.RunDir(), FailedDirName, "unit_tests.log"))
	require.NoError(t, err)
	assert.Contains(t, string(note), "status: FAILURE")
	assert.Contains(t, string(note), "1 test failed")
}

func TestFileLoggerComplete(t *testing.T) {
	l, err := NewFileLogger(t.TempDir(), "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, l.RunID(), "an empty run ID gets a generated one")

	h := types.NewStepHistory()
	require.NoError(t, h.Insert(types.NewStepResult(&types.Step{Name: "compile"}, 0)))
	failing := types.NewStepResult(&types.Step{Name: "test"}, 1)
	require.NoError(t, failing.Presentation().SetStatus(types.StatusFailure))
	require.NoError(t, h.Insert(failing))

	require.NoError(t, l.Complete(h, 1))

	summary, err := os.ReadFile(filepath.Join(l.RunDir(), SummaryFilename))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "exit code: 1")
	assert.Contains(t, string(summary), "compile")
	assert.Contains(t, string(summary), "FAILURE")
}

func TestFileLoggerRequiresBaseDir(t *testing.T) {
	_, err := NewFileLogger("", "id", nil)
	require.Error(t, err)
}
