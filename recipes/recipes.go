// Package recipes holds the compiled-in recipe set: the built-in search
// root and the per-module example registries used to smoke-test module
// integrations.
package recipes

import (
	"fmt"

	"github.com/stepline-ci/stepline/gtest"
	"github.com/stepline-ci/stepline/recipe"
	"github.com/stepline-ci/stepline/runner"
	"github.com/stepline-ci/stepline/types"
)

// BuiltinRoot returns the default search root.
func BuiltinRoot() *recipe.Registry {
	reg := recipe.NewRegistry("builtin")
	reg.MustRegister(&recipe.Recipe{Name: "run_steps", GenSteps: runStepsGen})
	return reg
}

// ModuleRegistries returns the example registries, keyed by module name.
// They back the "module:example" recipe form.
func ModuleRegistries() map[string]*recipe.Registry {
	gtestReg := recipe.NewRegistry("gtest")
	gtestReg.MustRegister(&recipe.Recipe{Name: "example", GenSteps: gtestExampleGen})

	jsonReg := recipe.NewRegistry("json")
	jsonReg.MustRegister(&recipe.Recipe{Name: "example", GenSteps: jsonExampleGen})

	return map[string]*recipe.Registry{
		"gtest": gtestReg,
		"json":  jsonReg,
	}
}

// runStepsGen turns the "steps" property into one seeded batch of steps.
// Each entry is an object with a name, a command, and optional cwd, env and
// continue-on-failure settings.
func runStepsGen(c *recipe.Context) ([]runner.Item, error) {
	specs, ok := c.Properties.List("steps")
	if !ok {
		return nil, fmt.Errorf("run_steps: property %q is required and must be a list", "steps")
	}

	steps := make([]*types.Step, 0, len(specs))
	for i, raw := range specs {
		spec, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("run_steps: steps[%d] is not an object", i)
		}
		step, err := stepFromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("run_steps: steps[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return []runner.Item{runner.Steps(steps...)}, nil
}

func stepFromSpec(spec map[string]any) (*types.Step, error) {
	name, ok := spec["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("missing step name")
	}
	rawCmd, ok := spec["cmd"].([]any)
	if !ok || len(rawCmd) == 0 {
		return nil, fmt.Errorf("step %q has no command", name)
	}
	argv := make([]string, len(rawCmd))
	for i, tok := range rawCmd {
		s, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("step %q: cmd[%d] is not a string", name, i)
		}
		argv[i] = s
	}

	step := &types.Step{
		Name: name,
		Cmd:  types.Command(argv...),
	}
	if cwd, ok := spec["cwd"].(string); ok {
		step.Cwd = cwd
	}
	if env, ok := spec["env"].(map[string]any); ok {
		step.Env = make(map[string]string, len(env))
		for k, v := range env {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("step %q: env %q is not a string", name, k)
			}
			step.Env[k] = s
		}
	}
	if cont, ok := spec["continue_on_failure"].(bool); ok {
		step.ContinueOnFailure = cont
	}
	if sub, ok := spec["allow_subannotations"].(bool); ok {
		step.AllowSubannotations = sub
	}
	return step, nil
}

// gtestExampleGen runs one googletest binary, named by the "test_binary"
// property, with log classification attached.
func gtestExampleGen(c *recipe.Context) ([]runner.Item, error) {
	binary, ok := c.Properties.String("test_binary")
	if !ok {
		return nil, fmt.Errorf("gtest example: property %q is required", "test_binary")
	}
	step := &types.Step{
		Name: "gtest example",
		Cmd:  append(types.Command(binary), &gtest.ResultsPlaceholder{}),
	}
	return []runner.Item{runner.Single(step)}, nil
}

// jsonExampleGen runs one command, named by the "cmd" property, that writes
// its result as JSON to the scratch path appended to its argv.
func jsonExampleGen(c *recipe.Context) ([]runner.Item, error) {
	rawCmd, ok := c.Properties.List("cmd")
	if !ok || len(rawCmd) == 0 {
		return nil, fmt.Errorf("json example: property %q is required and must be a list", "cmd")
	}
	argv := make([]types.Arg, 0, len(rawCmd)+1)
	for i, tok := range rawCmd {
		s, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("json example: cmd[%d] is not a string", i)
		}
		argv = append(argv, types.String(s))
	}
	argv = append(argv, &recipe.JSONOutput{AddLog: true})

	step := &types.Step{
		Name: "json example",
		Cmd:  argv,
	}
	return []runner.Item{runner.Single(step)}, nil
}
