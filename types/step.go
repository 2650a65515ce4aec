package types

// Arg is a single command-line token of a step. Most tokens are plain
// strings; placeholders defer their expansion until the step is rendered
// for execution.
type Arg interface {
	isArg()
}

// String is a literal command-line token.
type String string

func (String) isArg() {}

// PlaceholderArg is embedded by placeholder implementations outside this
// package to satisfy Arg.
type PlaceholderArg struct{}

func (PlaceholderArg) isArg() {}

// Placeholder is a deferred command-argument and result-extraction
// capability owned by one contributing subsystem (its namespace). At render
// time it expands into zero or more concrete tokens; after the step has run
// it gets a chance to harvest structured data from the step's output.
type Placeholder interface {
	Arg

	// Namespace names the owning subsystem. Placeholder outputs are
	// attached to the step result under this key, and test data for the
	// placeholder is looked up under it.
	Namespace() string

	// Render converts the placeholder into concrete command tokens.
	// testData is the placeholder's slice of the step's canned test data,
	// or nil when running live.
	Render(testData map[string]any) []string

	// StepFinished is called after the step has executed. The placeholder
	// may annotate the presentation and write derived values into output,
	// which is attached to the step result under the namespace.
	StepFinished(pres *Presentation, output map[string]any, rawOutput string, testData map[string]any)
}

// FollowupFunc is an optional per-step callback invoked with the step's
// result after execution but before the presentation is finalized.
// Followups may override status, text and logs.
type FollowupFunc func(*StepResult)

// Step describes one externally executed unit of work. Steps are created by
// recipe code, rendered, executed once, and then retained (deep-copied)
// inside the run's StepHistory.
type Step struct {
	// Name uniquely identifies the step within one run.
	Name string

	// Cmd is the ordered argument list, possibly containing unresolved
	// placeholders.
	Cmd []Arg

	// Cwd is the working directory for the subprocess, empty for inherit.
	Cwd string

	// Env holds environment overrides applied on top of the parent
	// environment.
	Env map[string]string

	// SeedSteps lists the names of sibling steps this step was co-generated
	// with, so the coordination backend can seed them ahead of execution.
	SeedSteps []string

	// ContinueOnFailure marks a step whose non-zero return code must not
	// move the run into the failed state.
	ContinueOnFailure bool

	// KeepGoing signals that the producing generator wants to keep yielding
	// steps even after the run has failed.
	KeepGoing bool

	// AllowSubannotations lets the subprocess emit its own annotation
	// lines; without it, such lines are escaped by the execution sink.
	AllowSubannotations bool

	// Followup, if set, runs after execution with the step's result.
	Followup FollowupFunc
}

// Command builds an argument list from literal tokens.
func Command(args ...string) []Arg {
	cmd := make([]Arg, len(args))
	for i, a := range args {
		cmd[i] = String(a)
	}
	return cmd
}

// Clone returns a deep copy of the step. The Followup callback and any
// placeholders in Cmd are shared; they are capability objects, not data.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	c := *s
	if s.Cmd != nil {
		c.Cmd = make([]Arg, len(s.Cmd))
		copy(c.Cmd, s.Cmd)
	}
	if s.SeedSteps != nil {
		c.SeedSteps = make([]string, len(s.SeedSteps))
		copy(c.SeedSteps, s.SeedSteps)
	}
	if s.Env != nil {
		c.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			c.Env[k] = v
		}
	}
	return &c
}
