package types

// StepResult is produced exactly once per executed step. It owns a
// defensive copy of the originating step, the subprocess return code, the
// step's presentation, and any outputs attached by placeholders.
type StepResult struct {
	step         *Step
	retCode      int
	presentation *Presentation
	outputs      map[string]map[string]any
}

// NewStepResult builds a result for the given step and return code. The
// step is deep-copied; later mutation of the original does not affect the
// result.
func NewStepResult(step *Step, retCode int) *StepResult {
	return &StepResult{
		step:         step.Clone(),
		retCode:      retCode,
		presentation: NewPresentation(),
		outputs:      make(map[string]map[string]any),
	}
}

// Step returns a deep copy of the originating step.
func (r *StepResult) Step() *Step { return r.step.Clone() }

// Name returns the originating step's name.
func (r *StepResult) Name() string { return r.step.Name }

// RetCode returns the subprocess return code.
func (r *StepResult) RetCode() int { return r.retCode }

// Presentation returns the step's presentation. It is mutable until the
// orchestration loop finalizes it.
func (r *StepResult) Presentation() *Presentation { return r.presentation }

// AttachOutput stores a placeholder namespace's harvested values on the
// result. A second attach for the same namespace replaces the first.
func (r *StepResult) AttachOutput(namespace string, output map[string]any) {
	r.outputs[namespace] = output
}

// Output returns the values attached under the given namespace.
func (r *StepResult) Output(namespace string) (map[string]any, bool) {
	out, ok := r.outputs[namespace]
	return out, ok
}
