package types

import (
	"errors"
	"fmt"
)

// ErrDuplicateStep is returned when a step name is inserted into a history
// twice. Step names are unique within one run; a duplicate is a recipe
// programming error.
var ErrDuplicateStep = errors.New("duplicate step name")

// StepHistory is an insertion-ordered mapping from step name to result.
// It has a single writer (the orchestration loop) and is not safe for
// concurrent use.
type StepHistory struct {
	order  []string
	byName map[string]*StepResult
}

// NewStepHistory returns an empty history.
func NewStepHistory() *StepHistory {
	return &StepHistory{byName: make(map[string]*StepResult)}
}

// Insert appends a result. Inserting a name already present fails with
// ErrDuplicateStep.
func (h *StepHistory) Insert(result *StepResult) error {
	name := result.Name()
	if _, ok := h.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStep, name)
	}
	h.byName[name] = result
	h.order = append(h.order, name)
	return nil
}

// Contains reports whether a step with the given name has been recorded.
func (h *StepHistory) Contains(name string) bool {
	_, ok := h.byName[name]
	return ok
}

// Get returns the result recorded under name.
func (h *StepHistory) Get(name string) (*StepResult, bool) {
	r, ok := h.byName[name]
	return r, ok
}

// Last returns the most recently inserted result, nil if empty.
func (h *StepHistory) Last() *StepResult {
	if len(h.order) == 0 {
		return nil
	}
	return h.byName[h.order[len(h.order)-1]]
}

// Nth returns the n'th inserted result (zero-based), nil if out of range.
func (h *StepHistory) Nth(n int) *StepResult {
	if n < 0 || n >= len(h.order) {
		return nil
	}
	return h.byName[h.order[n]]
}

// Len returns the number of recorded steps.
func (h *StepHistory) Len() int { return len(h.order) }

// Names returns the step names in insertion order.
func (h *StepHistory) Names() []string {
	return append([]string(nil), h.order...)
}
