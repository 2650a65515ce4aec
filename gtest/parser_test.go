package gtest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(p *LogParser, lines ...string) {
	for _, line := range lines {
		p.ProcessLine(line)
	}
}

func TestPassingTest(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"[       OK ] Foo.Bar (10 ms)",
		"[  PASSED  ] 1 test.",
	)

	assert.Equal(t, StatusOK, p.StatusOf("Foo.Bar"))
	assert.Empty(t, p.FailedTests(false, false))
	assert.Empty(t, p.RunningTests())
	assert.True(t, p.Completed())
	assert.True(t, p.CompletedWithoutFailure())
	assert.Empty(t, p.ParsingErrors())
}

func TestFailingTestCollectsDescription(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"some/file.cc:123: Failure",
		"Expected: 1",
		"[  FAILED  ] Foo.Bar (10 ms)",
	)

	assert.Equal(t, StatusFailed, p.StatusOf("Foo.Bar"))
	assert.Equal(t, []string{"Foo.Bar"}, p.FailedTests(false, false))
	assert.Equal(t,
		[]string{"Foo.Bar: ", "some/file.cc:123: Failure", "Expected: 1"},
		p.FailureDescription("Foo.Bar"))
}

func TestFailureListedTwiceKeepsFirstDescription(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"original failure text",
		"[  FAILED  ] Foo.Bar (10 ms)",
		// Trailing summary lists the failure again with no output around it.
		"[  FAILED  ] Foo.Bar",
	)

	assert.Equal(t, StatusFailed, p.StatusOf("Foo.Bar"))
	assert.Contains(t, p.FailureDescription("Foo.Bar"), "original failure text")
}

func TestUnterminatedTestCountsAsRunningAndFailed(t *testing.T) {
	p := NewLogParser()
	feed(p, "[ RUN      ] Foo.Bar")

	assert.Equal(t, StatusStarted, p.StatusOf("Foo.Bar"))
	assert.Equal(t, []string{"Foo.Bar"}, p.RunningTests())
	assert.Equal(t, []string{"Foo.Bar"}, p.FailedTests(false, false))
	assert.Equal(t, []string{"Foo.Bar: ", "Did not complete."},
		p.FailureDescription("Foo.Bar"))
	assert.False(t, p.CompletedWithoutFailure())
}

func TestAbandonedTestForcedToTimeout(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"[ RUN      ] Foo.Baz",
		"[       OK ] Foo.Baz (1 ms)",
	)

	assert.Equal(t, StatusTimeout, p.StatusOf("Foo.Bar"),
		"re-entering RUN must force the stale test to timeout")
	assert.Equal(t, StatusOK, p.StatusOf("Foo.Baz"))
	assert.Equal(t, []string{"Foo.Bar: ", "Did not complete."},
		p.FailureDescription("Foo.Bar"))
}

func TestShardSummaryForcesTimeout(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"[1/10] 2.33s Foo.Baz passed",
	)

	assert.Equal(t, StatusTimeout, p.StatusOf("Foo.Bar"))
	assert.Empty(t, p.CurrentTest())
}

func TestTimeoutMessage(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"blah",
		"Test timeout (45000 ms) exceeded for Foo.Bar",
	)

	assert.Equal(t, StatusTimeout, p.StatusOf("Foo.Bar"))
	desc := p.FailureDescription("Foo.Bar")
	assert.Equal(t, "Killed (timed out).", desc[len(desc)-1])
	assert.Contains(t, desc, "blah")
	assert.Empty(t, p.ParsingErrors())
}

func TestOKWithoutRunIsSoftError(t *testing.T) {
	p := NewLogParser()
	feed(p, "[       OK ] Foo.Bar (10 ms)")

	assert.Equal(t, StatusOK, p.StatusOf("Foo.Bar"))
	require.Len(t, p.ParsingErrors(), 1)
	assert.Contains(t, p.ParsingErrors()[0], "success while in status not known")

	p.ClearParsingErrors()
	assert.Equal(t, []string{"Cleared."}, p.ParsingErrors())
}

func TestDisabledAndFlakyCounts(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"  YOU HAVE 3 DISABLED TESTS",
		"  YOU HAVE 2 FLAKY TESTS",
	)

	assert.Equal(t, Count{N: 3}, p.DisabledTests())
	assert.Equal(t, Count{N: 2}, p.FlakyTests())
	assert.Equal(t, "3", p.DisabledTests().String())
}

func TestZeroDisabledCountIsIndeterminate(t *testing.T) {
	p := NewLogParser()
	feed(p, "  YOU HAVE 0 DISABLED TESTS")

	assert.True(t, p.DisabledTests().Indeterminate)
	assert.Equal(t, "some", p.DisabledTests().String())

	// An indeterminate count is sticky even if a later banner parses.
	feed(p, "  YOU HAVE 5 DISABLED TESTS")
	assert.True(t, p.DisabledTests().Indeterminate)
}

func TestRetryPassDowngradesToWarning(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"first failure output",
		"[  FAILED  ] Foo.Bar (10 ms)",
		"RETRYING FAILED TESTS:",
		"[ RUN      ] Foo.Bar",
		"retry run output",
		"[       OK ] Foo.Bar (10 ms)",
	)

	assert.Equal(t, StatusWarning, p.StatusOf("Foo.Bar"))
	assert.Equal(t, []string{"Foo.Bar"}, p.FailedTests(false, false),
		"a retry pass still failed the first time")

	desc := strings.Join(p.FailureDescription("Foo.Bar"), "\n")
	assert.Contains(t, desc, "first failure output")
	assert.Contains(t, desc, "RETRY OUTPUT:")
	assert.Contains(t, desc, "retry run output")
}

func TestRetryFailKeepsFailed(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"first failure output",
		"[  FAILED  ] Foo.Bar (10 ms)",
		"RETRYING FAILED TESTS:",
		"[ RUN      ] Foo.Bar",
		"still broken",
		"[  FAILED  ] Foo.Bar (10 ms)",
	)

	assert.Equal(t, StatusFailed, p.StatusOf("Foo.Bar"))
	desc := strings.Join(p.FailureDescription("Foo.Bar"), "\n")
	assert.Contains(t, desc, "first failure output")
	assert.Contains(t, desc, "RETRY OUTPUT:")
	assert.Contains(t, desc, "still broken")
}

func TestSuppressionBlockStoredVerbatim(t *testing.T) {
	p := NewLogParser()
	lines := []string{
		"Suppression (error hash=#A1B2C3D4#):",
		"{",
		"   <insert_a_suppression_name_here>",
		"   Memcheck:Leak",
		"   fun:malloc",
		"}",
	}
	feed(p, lines...)

	assert.Equal(t, []string{"A1B2C3D4"}, p.SuppressionHashes())
	assert.Equal(t, lines, p.Suppression("A1B2C3D4"),
		"boundary lines are part of the stored suppression")
	assert.Empty(t, p.Suppression("DEADBEEF"))
}

func TestDuplicateSuppressionHashIsSoftError(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"Suppression (error hash=#A1B2C3D4#):",
		"}",
		"Suppression (error hash=#A1B2C3D4#):",
		"}",
	)

	require.Len(t, p.ParsingErrors(), 1)
	assert.Contains(t, p.ParsingErrors()[0], "suppression reported more than once")
}

func TestInterleavedMarkerIsSplit(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"child process output[       OK ] Foo.Bar (10 ms)",
	)

	assert.Equal(t, StatusOK, p.StatusOf("Foo.Bar"))
	assert.Empty(t, p.ParsingErrors())
}

func TestFailingTestsSectionReclassifies(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.Bar",
		"[       OK ] Foo.Bar (10 ms)",
		"[  PASSED  ] 1 test.",
		"Failing tests:",
		"Foo.Bar",
		"",
	)

	assert.Equal(t, StatusFailed, p.StatusOf("Foo.Bar"),
		"a test listed in the trailing failure list crashed after its OK line")
	assert.Equal(t, []string{"Foo.Bar: ", "Unknown error, see stdio log."},
		p.FailureDescription("Foo.Bar"))
	assert.False(t, p.CompletedWithoutFailure())
}

func TestFailingTestsSectionEndsOnNonName(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"Failing tests:",
		"Foo.Bar",
		"-- end of list --",
		"Foo.Baz",
	)

	assert.Equal(t, StatusFailed, p.StatusOf("Foo.Bar"))
	assert.Equal(t, StatusNotKnown, p.StatusOf("Foo.Baz"),
		"section ended at the first non-name line")
}

func TestMasterNameFirstOccurrenceWins(t *testing.T) {
	p := NewLogParser()
	feed(p,
		`[Running for master: "ChromiumMemory"]`,
		`[Running for master: "SomethingElse"]`,
	)
	assert.Equal(t, "ChromiumMemory", p.MasterName())
}

func TestFailsAndFlakyNameFilters(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Foo.FAILS_Bar",
		"[  FAILED  ] Foo.FAILS_Bar (10 ms)",
		"[ RUN      ] Foo.FLAKY_Baz",
		"[  FAILED  ] Foo.FLAKY_Baz (10 ms)",
		"[ RUN      ] Foo.Quux",
		"[  FAILED  ] Foo.Quux (10 ms)",
	)

	assert.Equal(t, []string{"Foo.Quux"}, p.FailedTests(false, false))
	assert.ElementsMatch(t,
		[]string{"Foo.FAILS_Bar", "Foo.Quux"},
		p.FailedTests(true, false))
	assert.ElementsMatch(t,
		[]string{"Foo.FAILS_Bar", "Foo.FLAKY_Baz", "Foo.Quux"},
		p.FailedTests(true, true))
}

func TestParameterizedTestNames(t *testing.T) {
	p := NewLogParser()
	feed(p,
		"[ RUN      ] Instantiation/FooTest.Bar/0",
		"[       OK ] Instantiation/FooTest.Bar/0 (3 ms)",
	)
	assert.Equal(t, StatusOK, p.StatusOf("Instantiation/FooTest.Bar/0"))
}

func TestProcessOutputReader(t *testing.T) {
	log := strings.Join([]string{
		"[ RUN      ] Foo.Bar",
		"[       OK ] Foo.Bar (1 ms)",
		"[  PASSED  ] 1 test.",
	}, "\n")

	p := NewLogParser()
	require.NoError(t, p.ProcessOutput(strings.NewReader(log)))
	assert.True(t, p.CompletedWithoutFailure())
}
