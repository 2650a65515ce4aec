package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAnnotator captures what Finalize flushes.
type recordingAnnotator struct {
	texts      []string
	summaries  []string
	links      []Link
	logs       map[string][]string
	perfLogs   map[string][]string
	warnings   int
	failures   int
	exceptions int
}

func newRecordingAnnotator() *recordingAnnotator {
	return &recordingAnnotator{
		logs:     make(map[string][]string),
		perfLogs: make(map[string][]string),
	}
}

func (a *recordingAnnotator) StepText(text string)        { a.texts = append(a.texts, text) }
func (a *recordingAnnotator) StepSummaryText(text string) { a.summaries = append(a.summaries, text) }
func (a *recordingAnnotator) StepLink(label, url string) {
	a.links = append(a.links, Link{Label: label, URL: url})
}
func (a *recordingAnnotator) WriteLogLines(name string, lines []string, perf bool) {
	if perf {
		a.perfLogs[name] = append(a.perfLogs[name], lines...)
	} else {
		a.logs[name] = append(a.logs[name], lines...)
	}
}
func (a *recordingAnnotator) StepWarnings()  { a.warnings++ }
func (a *recordingAnnotator) StepFailure()   { a.failures++ }
func (a *recordingAnnotator) StepException() { a.exceptions++ }

func TestPresentationSetStatus(t *testing.T) {
	p := NewPresentation()
	assert.Equal(t, StatusUnknown, p.Status())

	require.NoError(t, p.SetStatus(StatusFailure))
	assert.Equal(t, StatusFailure, p.Status())

	err := p.SetStatus("BOGUS")
	require.Error(t, err)
	assert.Equal(t, StatusFailure, p.Status(), "invalid status must not overwrite")
}

func TestPresentationRejectsMutationAfterFinalize(t *testing.T) {
	p := NewPresentation()
	require.NoError(t, p.SetStatus(StatusWarning))
	require.NoError(t, p.SetStepText("detail"))
	require.NoError(t, p.AddLog("stdio", "line one"))

	p.Finalize(newRecordingAnnotator())

	assert.ErrorIs(t, p.SetStatus(StatusSuccess), ErrFinalized)
	assert.ErrorIs(t, p.SetStepText("other"), ErrFinalized)
	assert.ErrorIs(t, p.SetSummaryText("other"), ErrFinalized)
	assert.ErrorIs(t, p.AddLog("stdio", "more"), ErrFinalized)
	assert.ErrorIs(t, p.AddPerfLog("perf", "more"), ErrFinalized)
	assert.ErrorIs(t, p.AddLink("results", "https://example.com"), ErrFinalized)

	assert.Equal(t, StatusWarning, p.Status())
	assert.Equal(t, []string{"line one"}, p.Log("stdio"))
}

func TestPresentationLogReturnsIndependentCopy(t *testing.T) {
	p := NewPresentation()
	require.NoError(t, p.AddLog("stdio", "a", "b"))
	p.Finalize(newRecordingAnnotator())

	got := p.Log("stdio")
	got[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, p.Log("stdio"),
		"mutating a returned log must not affect internal state")
}

func TestPresentationFinalizeFlushesToAnnotator(t *testing.T) {
	p := NewPresentation()
	require.NoError(t, p.SetStepText("text"))
	require.NoError(t, p.SetSummaryText("summary"))
	require.NoError(t, p.AddLog("stdio", "a"))
	require.NoError(t, p.AddPerfLog("timings", "1.0s"))
	require.NoError(t, p.AddLink("results", "https://ci.example.com/run/1"))
	require.NoError(t, p.SetStatus(StatusFailure))

	sink := newRecordingAnnotator()
	p.Finalize(sink)

	assert.Equal(t, []string{"text"}, sink.texts)
	assert.Equal(t, []string{"summary"}, sink.summaries)
	assert.Equal(t, []Link{{Label: "results", URL: "https://ci.example.com/run/1"}}, sink.links)
	assert.Equal(t, []string{"a"}, sink.logs["stdio"])
	assert.Equal(t, []string{"1.0s"}, sink.perfLogs["timings"])
	assert.Equal(t, 1, sink.failures)
	assert.Zero(t, sink.warnings)
	assert.Zero(t, sink.exceptions)

	// A second finalize must not flush again.
	p.Finalize(sink)
	assert.Equal(t, 1, sink.failures)
}

func TestPresentationLogOrderIsInsertionOrder(t *testing.T) {
	p := NewPresentation()
	require.NoError(t, p.AddLog("b", "1"))
	require.NoError(t, p.AddLog("a", "2"))
	require.NoError(t, p.AddLog("b", "3"))

	assert.Equal(t, []string{"b", "a"}, p.LogNames())
	assert.Equal(t, []string{"1", "3"}, p.Log("b"))
}
