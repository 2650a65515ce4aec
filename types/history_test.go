package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepHistoryInsertionOrder(t *testing.T) {
	h := NewStepHistory()
	require.NoError(t, h.Insert(NewStepResult(&Step{Name: "compile"}, 0)))
	require.NoError(t, h.Insert(NewStepResult(&Step{Name: "test"}, 1)))
	require.NoError(t, h.Insert(NewStepResult(&Step{Name: "archive"}, 0)))

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"compile", "test", "archive"}, h.Names())
	assert.Equal(t, "archive", h.Last().Name())
	assert.Equal(t, "compile", h.Nth(0).Name())
	assert.Equal(t, "test", h.Nth(1).Name())
	assert.Nil(t, h.Nth(3))
	assert.Nil(t, h.Nth(-1))
}

func TestStepHistoryRejectsDuplicateName(t *testing.T) {
	h := NewStepHistory()
	require.NoError(t, h.Insert(NewStepResult(&Step{Name: "compile"}, 0)))

	err := h.Insert(NewStepResult(&Step{Name: "compile"}, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateStep)
	assert.Equal(t, 1, h.Len())
}

func TestStepHistoryEmpty(t *testing.T) {
	h := NewStepHistory()
	assert.Nil(t, h.Last())
	assert.Zero(t, h.Len())
	assert.False(t, h.Contains("anything"))
}

func TestStepResultDefensivelyCopiesStep(t *testing.T) {
	step := &Step{
		Name:      "test",
		Cmd:       Command("runner", "--flag"),
		SeedSteps: []string{"test", "archive"},
		Env:       map[string]string{"LANG": "C"},
	}
	r := NewStepResult(step, 0)

	step.Cmd[0] = String("mutated")
	step.SeedSteps[0] = "mutated"
	step.Env["LANG"] = "mutated"

	got := r.Step()
	assert.Equal(t, String("runner"), got.Cmd[0])
	assert.Equal(t, "test", got.SeedSteps[0])
	assert.Equal(t, "C", got.Env["LANG"])

	// The accessor itself must hand out an independent copy.
	got.Cmd[0] = String("again")
	assert.Equal(t, String("runner"), r.Step().Cmd[0])
}
