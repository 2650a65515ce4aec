package types

import (
	"errors"
	"fmt"
)

// ErrFinalized is returned by presentation mutators once the presentation
// has been flushed to the annotation sink.
var ErrFinalized = errors.New("presentation is finalized")

// StepAnnotator is the per-step slice of the coordination backend that a
// presentation is flushed into when finalized.
type StepAnnotator interface {
	StepText(text string)
	StepSummaryText(text string)
	StepLink(label, url string)
	WriteLogLines(logName string, lines []string, perf bool)
	StepWarnings()
	StepFailure()
	StepException()
}

// Link is a labeled URL attached to a step.
type Link struct {
	Label string
	URL   string
}

// Presentation is the human- and machine-facing summary of a step's
// outcome: a status, short text, and named logs. It is mutable until
// Finalize is called; afterwards every mutator fails and every accessor
// returns data that is independent of internal state.
type Presentation struct {
	finalized bool

	status      Status
	stepText    string
	summaryText string

	logNames     []string
	logs         map[string][]string
	perfLogNames []string
	perfLogs     map[string][]string
	links        []Link
}

// NewPresentation returns an empty, mutable presentation.
func NewPresentation() *Presentation {
	return &Presentation{
		logs:     make(map[string][]string),
		perfLogs: make(map[string][]string),
	}
}

// Finalized reports whether the presentation has been flushed.
func (p *Presentation) Finalized() bool { return p.finalized }

// Status returns the current status, StatusUnknown if never set.
func (p *Presentation) Status() Status { return p.status }

// SetStatus assigns the step status. Only the four concrete statuses are
// assignable.
func (p *Presentation) SetStatus(s Status) error {
	if p.finalized {
		return ErrFinalized
	}
	if !s.Valid() {
		return fmt.Errorf("invalid step status %q", string(s))
	}
	p.status = s
	return nil
}

// StepText returns the step's detail text.
func (p *Presentation) StepText() string { return p.stepText }

// SetStepText assigns the step's detail text.
func (p *Presentation) SetStepText(text string) error {
	if p.finalized {
		return ErrFinalized
	}
	p.stepText = text
	return nil
}

// SummaryText returns the step's one-line summary.
func (p *Presentation) SummaryText() string { return p.summaryText }

// SetSummaryText assigns the step's one-line summary.
func (p *Presentation) SetSummaryText(text string) error {
	if p.finalized {
		return ErrFinalized
	}
	p.summaryText = text
	return nil
}

// AddLog appends lines to the named log, creating it on first use. Log
// order is the order of first insertion.
func (p *Presentation) AddLog(name string, lines ...string) error {
	if p.finalized {
		return ErrFinalized
	}
	if _, ok := p.logs[name]; !ok {
		p.logNames = append(p.logNames, name)
	}
	p.logs[name] = append(p.logs[name], lines...)
	return nil
}

// AddPerfLog appends lines to the named performance log.
func (p *Presentation) AddPerfLog(name string, lines ...string) error {
	if p.finalized {
		return ErrFinalized
	}
	if _, ok := p.perfLogs[name]; !ok {
		p.perfLogNames = append(p.perfLogNames, name)
	}
	p.perfLogs[name] = append(p.perfLogs[name], lines...)
	return nil
}

// AddLink attaches a labeled URL to the step.
func (p *Presentation) AddLink(label, url string) error {
	if p.finalized {
		return ErrFinalized
	}
	p.links = append(p.links, Link{Label: label, URL: url})
	return nil
}

// Links returns a copy of the attached links in insertion order.
func (p *Presentation) Links() []Link {
	return append([]Link(nil), p.links...)
}

// LogNames returns the log names in insertion order.
func (p *Presentation) LogNames() []string {
	return append([]string(nil), p.logNames...)
}

// PerfLogNames returns the performance log names in insertion order.
func (p *Presentation) PerfLogNames() []string {
	return append([]string(nil), p.perfLogNames...)
}

// Log returns a copy of the named log's lines, nil if absent. The copy is
// independent of internal state; mutate it freely.
func (p *Presentation) Log(name string) []string {
	lines, ok := p.logs[name]
	if !ok {
		return nil
	}
	return append([]string(nil), lines...)
}

// PerfLog returns a copy of the named performance log's lines.
func (p *Presentation) PerfLog(name string) []string {
	lines, ok := p.perfLogs[name]
	if !ok {
		return nil
	}
	return append([]string(nil), lines...)
}

// Finalize flushes text, logs and status to the annotation sink and locks
// the presentation. Finalizing twice is a no-op for the sink but the
// presentation stays locked.
func (p *Presentation) Finalize(step StepAnnotator) {
	if p.finalized {
		return
	}
	p.finalized = true

	if p.stepText != "" {
		step.StepText(p.stepText)
	}
	if p.summaryText != "" {
		step.StepSummaryText(p.summaryText)
	}
	for _, link := range p.links {
		step.StepLink(link.Label, link.URL)
	}
	for _, name := range p.logNames {
		step.WriteLogLines(name, p.Log(name), false)
	}
	for _, name := range p.perfLogNames {
		step.WriteLogLines(name, p.PerfLog(name), true)
	}
	switch p.status {
	case StatusWarning:
		step.StepWarnings()
	case StatusFailure:
		step.StepFailure()
	case StatusException:
		step.StepException()
	}
}
