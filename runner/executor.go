package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/ethereum/go-ethereum/log"

	"github.com/stepline-ci/stepline/annotation"
	"github.com/stepline-ci/stepline/types"
)

// Executor is the external collaborator that runs a step's subprocess. It
// returns the process return code and its captured combined output.
// A non-nil error means the process could not be run at all (an
// infrastructure fault), not that it exited non-zero.
type Executor interface {
	Run(ctx context.Context, step *types.Step, annot *annotation.Step) (int, string, error)
}

// execExecutor runs steps with os/exec, blocking until the subprocess
// exits. Timeout enforcement belongs to whoever supplies the context;
// this layer only reports what the process returned.
type execExecutor struct {
	log log.Logger
}

// NewExecutor returns the default subprocess executor.
func NewExecutor(logger log.Logger) Executor {
	if logger == nil {
		logger = log.New()
	}
	return &execExecutor{log: logger}
}

func (e *execExecutor) Run(ctx context.Context, step *types.Step, annot *annotation.Step) (int, string, error) {
	if ctx == nil {
		return 0, "", errors.New("context cannot be nil")
	}
	argv, err := commandArgv(step)
	if err != nil {
		return 0, "", err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = step.Cwd
	cmd.Env = mergeEnv(os.Environ(), step.Env)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	e.log.Debug("Executing step", "step", step.Name, "cmd", argv, "cwd", step.Cwd)

	err = cmd.Run()
	output := buf.String()
	emitOutput(annot, output, step.AllowSubannotations)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), output, nil
		}
		// The process never ran (bad binary, bad cwd); this is an
		// infrastructure fault, not a step failure.
		return 0, output, fmt.Errorf("failed to run step %q: %w", step.Name, err)
	}
	return 0, output, nil
}

// commandArgv converts the step's rendered command into plain argv
// strings. An unrendered placeholder at this point is a programming error
// in the orchestration loop.
func commandArgv(step *types.Step) ([]string, error) {
	if len(step.Cmd) == 0 {
		return nil, fmt.Errorf("step %q has an empty command", step.Name)
	}
	argv := make([]string, len(step.Cmd))
	for i, arg := range step.Cmd {
		lit, ok := arg.(types.String)
		if !ok {
			return nil, fmt.Errorf("step %q: argument %d is an unrendered placeholder", step.Name, i)
		}
		argv[i] = string(lit)
	}
	return argv, nil
}

// mergeEnv applies overrides on top of the base environment.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := make([]string, len(base), len(base)+len(overrides))
	copy(env, base)
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// emitOutput forwards the captured subprocess output to the annotation
// stream, escaping annotation look-alikes unless the step allows them.
func emitOutput(annot *annotation.Step, output string, allowSubannotations bool) {
	if annot == nil || output == "" {
		return
	}
	scanner := bufio.NewScanner(bytes.NewBufferString(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		annot.EmitOutput(scanner.Text(), allowSubannotations)
	}
}
