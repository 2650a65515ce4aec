// Package annotation emits the structured annotation vocabulary consumed
// by the build coordination backend. Annotations are magic lines of the
// form @@@IDENTIFIER@arg@arg@@@ interleaved with ordinary step output; the
// backend uses them to seed, open, decorate and close steps on the
// waterfall.
package annotation

import (
	"fmt"
	"io"
	"strings"
)

// Stream writes step-lifecycle annotations to a single output. It tracks
// which steps have been seeded so a step is announced at most once before
// it runs. A Stream has a single writer by contract; it is not safe for
// concurrent use.
type Stream struct {
	w           io.Writer
	seeded      map[string]bool
	currentStep string
}

// NewStream returns a stream writing to w, with the given steps announced
// up front.
func NewStream(w io.Writer, seedSteps ...string) *Stream {
	s := &Stream{w: w, seeded: make(map[string]bool)}
	for _, name := range seedSteps {
		s.SeedStep(name)
	}
	return s
}

// Emit writes one raw annotation or output line.
func (s *Stream) Emit(line string) {
	fmt.Fprintln(s.w, line)
}

// SeedStep announces a step before it runs so the backend can display it
// as pending. Seeding the same name twice is a no-op.
func (s *Stream) SeedStep(name string) {
	if s.seeded[name] {
		return
	}
	s.seeded[name] = true
	s.Emit(fmt.Sprintf("@@@SEED_STEP %s@@@", name))
}

// StepCursor points the backend at the named step; subsequent step
// annotations apply to it.
func (s *Stream) StepCursor(name string) {
	s.currentStep = name
	s.Emit(fmt.Sprintf("@@@STEP_CURSOR %s@@@", name))
}

// CurrentStep returns the name under the cursor, "" if none.
func (s *Stream) CurrentStep() string { return s.currentStep }

// HonorZeroReturnCode tells the backend that a zero return code means
// success even if annotations suggested otherwise.
func (s *Stream) HonorZeroReturnCode() {
	s.Emit("@@@HONOR_ZERO_RETURN_CODE@@@")
}

// OpenStep seeds the step if needed, moves the cursor to it, and marks it
// started. The returned Step must be closed after the step finishes.
func (s *Stream) OpenStep(name string) *Step {
	s.SeedStep(name)
	s.StepCursor(name)
	s.Emit("@@@STEP_STARTED@@@")
	return &Step{stream: s, name: name}
}

// Step is the annotation handle for one opened step. It implements
// types.StepAnnotator.
type Step struct {
	stream *Stream
	name   string
	closed bool
}

// Name returns the step's name.
func (st *Step) Name() string { return st.name }

// Stream returns the owning annotation stream.
func (st *Step) Stream() *Stream { return st.stream }

// Emit writes a raw line within the step's annotation context.
func (st *Step) Emit(line string) { st.stream.Emit(line) }

// EmitOutput forwards a line of subprocess output. Unless allowed, lines
// that look like annotations are escaped with a leading '!' so a step
// cannot spoof the backend.
func (st *Step) EmitOutput(line string, allowSubannotations bool) {
	if !allowSubannotations && strings.HasPrefix(line, "@@@") {
		st.stream.Emit("!" + line)
		return
	}
	st.stream.Emit(line)
}

// StepText sets the step's detail text on the waterfall.
func (st *Step) StepText(text string) {
	st.stream.Emit(fmt.Sprintf("@@@STEP_TEXT@%s@@@", text))
}

// StepSummaryText sets the step's one-line summary on the waterfall.
func (st *Step) StepSummaryText(text string) {
	st.stream.Emit(fmt.Sprintf("@@@STEP_SUMMARY_TEXT@%s@@@", text))
}

// StepLink attaches a link to the step.
func (st *Step) StepLink(label, url string) {
	st.stream.Emit(fmt.Sprintf("@@@STEP_LINK@%s@%s@@@", label, url))
}

// WriteLogLines attaches a named log to the step. Performance logs get a
// distinct end marker so the backend routes them to the perf dashboard.
func (st *Step) WriteLogLines(logName string, lines []string, perf bool) {
	for _, line := range lines {
		st.stream.Emit(fmt.Sprintf("@@@STEP_LOG_LINE@%s@%s@@@", logName, strings.TrimRight(line, "\n")))
	}
	if perf {
		st.stream.Emit(fmt.Sprintf("@@@STEP_LOG_END_PERF@%s@%s@@@", logName, logName))
	} else {
		st.stream.Emit(fmt.Sprintf("@@@STEP_LOG_END@%s@@@", logName))
	}
}

// StepWarnings marks the step as having warnings.
func (st *Step) StepWarnings() { st.stream.Emit("@@@STEP_WARNINGS@@@") }

// StepFailure marks the step as failed.
func (st *Step) StepFailure() { st.stream.Emit("@@@STEP_FAILURE@@@") }

// StepException marks the step as having hit an infrastructure exception.
func (st *Step) StepException() { st.stream.Emit("@@@STEP_EXCEPTION@@@") }

// Close marks the step finished. Closing twice is a no-op.
func (st *Step) Close() {
	if st.closed {
		return
	}
	st.closed = true
	st.stream.Emit("@@@STEP_CLOSED@@@")
}
