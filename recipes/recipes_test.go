package recipes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepline-ci/stepline/recipe"
	"github.com/stepline-ci/stepline/runner"
	"github.com/stepline-ci/stepline/types"
)

func ctxWith(props map[string]any) *recipe.Context {
	return &recipe.Context{
		Properties: recipe.MergeProperties(nil, props),
		History:    types.NewStepHistory(),
	}
}

func TestRunStepsRecipe(t *testing.T) {
	root := BuiltinRoot()
	rec, ok := root.Lookup("run_steps")
	require.True(t, ok)

	items, err := rec.GenSteps(ctxWith(map[string]any{
		"steps": []any{
			map[string]any{
				"name": "compile",
				"cmd":  []any{"make", "all"},
				"cwd":  "/src",
				"env":  map[string]any{"CC": "clang"},
			},
			map[string]any{
				"name":                "lint",
				"cmd":                 []any{"make", "lint"},
				"continue_on_failure": true,
			},
		},
	}))
	require.NoError(t, err)
	require.Len(t, items, 1)

	steps, err := runner.Flatten(items[0])
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "compile", steps[0].Name)
	assert.Equal(t, types.Command("make", "all"), steps[0].Cmd)
	assert.Equal(t, "/src", steps[0].Cwd)
	assert.Equal(t, map[string]string{"CC": "clang"}, steps[0].Env)
	// The batch is seeded together.
	assert.Equal(t, []string{"compile", "lint"}, steps[0].SeedSteps)

	assert.True(t, steps[1].ContinueOnFailure)
}

func TestRunStepsRecipeRejectsMalformedSpecs(t *testing.T) {
	root := BuiltinRoot()
	rec, _ := root.Lookup("run_steps")

	_, err := rec.GenSteps(ctxWith(map[string]any{}))
	assert.ErrorContains(t, err, `"steps" is required`)

	_, err = rec.GenSteps(ctxWith(map[string]any{"steps": []any{"bogus"}}))
	assert.ErrorContains(t, err, "not an object")

	_, err = rec.GenSteps(ctxWith(map[string]any{
		"steps": []any{map[string]any{"name": "x"}},
	}))
	assert.ErrorContains(t, err, "no command")

	_, err = rec.GenSteps(ctxWith(map[string]any{
		"steps": []any{map[string]any{"cmd": []any{"true"}}},
	}))
	assert.ErrorContains(t, err, "missing step name")
}

func TestGtestExampleRecipe(t *testing.T) {
	mods := ModuleRegistries()
	rec, ok := mods["gtest"].Lookup("example")
	require.True(t, ok)

	items, err := rec.GenSteps(ctxWith(map[string]any{"test_binary": "./base_unittests"}))
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Step)

	cmd := items[0].Step.Cmd
	require.Len(t, cmd, 2)
	assert.Equal(t, types.String("./base_unittests"), cmd[0])
	_, isPlaceholder := cmd[1].(types.Placeholder)
	assert.True(t, isPlaceholder)

	_, err = rec.GenSteps(ctxWith(map[string]any{}))
	assert.Error(t, err)
}

func TestJSONExampleRecipe(t *testing.T) {
	mods := ModuleRegistries()
	rec, ok := mods["json"].Lookup("example")
	require.True(t, ok)

	items, err := rec.GenSteps(ctxWith(map[string]any{
		"cmd": []any{"./collect", "--json-output"},
	}))
	require.NoError(t, err)
	require.NotNil(t, items[0].Step)

	cmd := items[0].Step.Cmd
	require.Len(t, cmd, 3)
	_, isPlaceholder := cmd[2].(types.Placeholder)
	assert.True(t, isPlaceholder)

	_, err = rec.GenSteps(ctxWith(map[string]any{}))
	assert.Error(t, err)
}
