package stepline

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/stepline-ci/stepline/annotation"
	"github.com/stepline-ci/stepline/runner"
	"github.com/stepline-ci/stepline/types"
)

// workdirExecutor wraps the default subprocess executor and applies the
// configured working directory to steps that don't choose their own.
type workdirExecutor struct {
	inner   runner.Executor
	workdir string
}

func newWorkdirExecutor(workdir string, logger log.Logger) runner.Executor {
	return &workdirExecutor{
		inner:   runner.NewExecutor(logger),
		workdir: workdir,
	}
}

func (e *workdirExecutor) Run(ctx context.Context, step *types.Step, annot *annotation.Step) (int, string, error) {
	if step.Cwd == "" && e.workdir != "" {
		step = step.Clone()
		step.Cwd = e.workdir
	}
	return e.inner.Run(ctx, step, annot)
}
