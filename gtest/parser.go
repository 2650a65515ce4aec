// Package gtest parses GTest-style test runner output into a structured
// per-test status table. The parser is fed one line at a time and keeps
// best-effort state: garbled or interleaved lines are repaired where
// possible and recorded as soft parsing errors otherwise. It is safe only
// when driven by a single call path at a time.
package gtest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TestStatus is the parser's classification of one test.
type TestStatus string

const (
	StatusStarted  TestStatus = "started"
	StatusOK       TestStatus = "OK"
	StatusFailed   TestStatus = "failed"
	StatusTimeout  TestStatus = "timeout"
	StatusWarning  TestStatus = "warning"
	StatusNotKnown TestStatus = "not known"
)

// Count is a test count that may be indeterminate: the runner printed a
// disabled/flaky banner but the number could not be trusted. Indeterminate
// counts render as "some" so the signal is never silently dropped.
type Count struct {
	N             int
	Indeterminate bool
}

func (c Count) String() string {
	if c.Indeterminate {
		return "some"
	}
	return strconv.Itoa(c.N)
}

// Test names look like
//
//	SomeTestCase.SomeTest
//	SomeName/SomeTestCase.SomeTest/1
//
// This pattern also matches SomeName.SomeTest/1, which is harmless.
const testNamePattern = `((\w+/)?\w+\.\w+(/\d+)?)`

var (
	masterNameRE = regexp.MustCompile(`^\[Running for master: "([^"]*)"`)

	testNameRE   = regexp.MustCompile(`^` + testNamePattern)
	testStartRE  = regexp.MustCompile(`\[\s+RUN\s+\] ` + testNamePattern)
	testOKRE     = regexp.MustCompile(`\[\s+OK\s+\] ` + testNamePattern)
	testFailRE   = regexp.MustCompile(`\[\s+FAILED\s+\] ` + testNamePattern)
	testPassedRE = regexp.MustCompile(`\[\s+PASSED\s+\] \d+ tests?.`)

	runTestCasesRE = regexp.MustCompile(`^\[\s*\d+/\d+\]\s+[0-9.]+s ` + testNamePattern + ` .+`)
	testTimeoutRE  = regexp.MustCompile(`Test timeout \([0-9]+ ms\) exceeded for ` + testNamePattern)
	disabledRE     = regexp.MustCompile(`^\s*YOU HAVE (\d+) DISABLED TEST`)
	flakyRE        = regexp.MustCompile(`^\s*YOU HAVE (\d+) FLAKY TEST`)

	suppressionStartRE = regexp.MustCompile(`^Suppression \(error hash=#([0-9A-F]+)#\):`)
	suppressionEndRE   = regexp.MustCompile(`^}\s*$`)

	retryMessageRE = regexp.MustCompile(`^RETRYING FAILED TESTS:`)
)

// lifecycleREs are markers the parser expects at the start of a line but
// which subprocess output can push into the middle of one.
var lifecycleREs = []*regexp.Regexp{
	testStartRE,
	testOKRE,
	testFailRE,
	testPassedRE,
}

type testRecord struct {
	status      TestStatus
	description []string
}

// LogParser processes test runner output line by line.
type LogParser struct {
	completed              bool
	currentTest            string
	failureDescription     []string
	currentSuppressionHash string
	currentSuppression     []string
	parsingFailures        bool
	retryingFailed         bool

	lineNumber         int
	internalErrorLines []string

	tests        map[string]*testRecord
	suppressions map[string][]string

	disabledTests Count
	flakyTests    Count

	masterName string
}

// NewLogParser returns a parser with empty state.
func NewLogParser() *LogParser {
	return &LogParser{
		tests:        make(map[string]*testRecord),
		suppressions: make(map[string][]string),
	}
}

// ProcessOutput feeds every line of r through the parser.
func (p *LogParser) ProcessOutput(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		p.ProcessLine(scanner.Text())
	}
	return scanner.Err()
}

// ProcessLine consumes one line of test output.
//
// Some test binaries run subprocesses that write to the shared stdout
// buffer, so a lifecycle marker can end up in the middle of a line. When
// that happens the line is split at the marker and the halves are processed
// as two separate lines.
func (p *LogParser) ProcessLine(line string) {
	p.lineNumber++

	var loc []int
	for _, re := range lifecycleREs {
		if loc = re.FindStringIndex(line); loc != nil {
			break
		}
	}

	if loc == nil || loc[0] == 0 {
		p.processLine(line)
	} else {
		p.processLine(line[:loc[0]])
		p.processLine(line[loc[0]:])
	}
}

func (p *LogParser) processLine(line string) {
	// When sharding, the disabled and flaky counts are printed once per
	// shard; only the most recent values are kept (they should agree).

	if p.masterName == "" {
		if m := masterNameRE.FindStringSubmatch(line); m != nil {
			p.masterName = m[1]
		}
	}

	// A sharded runner summary line. A test still marked started did not
	// complete before its shard was summarized.
	if runTestCasesRE.MatchString(line) {
		if p.currentTest != "" {
			if rec := p.tests[p.currentTest]; rec != nil && rec.status == StatusStarted {
				p.forceTimeout(rec)
			}
		}
		p.currentTest = ""
		p.failureDescription = nil
		return
	}

	if loc := testPassedRE.FindStringIndex(line); loc != nil && loc[0] == 0 {
		p.completed = true
		p.currentTest = ""
		return
	}

	if m := disabledRE.FindStringSubmatch(line); m != nil {
		p.disabledTests = updateCount(p.disabledTests, m[1])
		return
	}

	if m := flakyRE.FindStringSubmatch(line); m != nil {
		p.flakyTests = updateCount(p.flakyTests, m[1])
		return
	}

	if m := matchAtStart(testStartRE, line); m != nil {
		if p.currentTest != "" {
			if rec := p.tests[p.currentTest]; rec != nil && rec.status == StatusStarted {
				p.forceTimeout(rec)
			}
		}
		name := m[1]
		rec := &testRecord{status: StatusStarted, description: []string{"Did not complete."}}
		if p.retryingFailed {
			// Keep the original failure's text; retry output is appended
			// after a separator rather than replacing it.
			if prev, ok := p.tests[name]; ok {
				rec.description = append(append([]string(nil), prev.description...),
					"", "RETRY OUTPUT:", "")
			} else {
				rec.description = append(rec.description, "", "RETRY OUTPUT:", "")
			}
			p.failureDescription = append([]string(nil), rec.description...)
		} else {
			p.failureDescription = nil
		}
		p.tests[name] = rec
		p.currentTest = name
		return
	}

	if m := matchAtStart(testOKRE, line); m != nil {
		name := m[1]
		if status := p.StatusOf(name); status != StatusStarted {
			p.recordError(line, fmt.Sprintf("success while in status %s", status))
		}
		if p.retryingFailed {
			// Passed on retry but failed the first time around.
			p.tests[name] = &testRecord{
				status:      StatusWarning,
				description: append([]string(nil), p.failureDescription...),
			}
		} else {
			p.tests[name] = &testRecord{status: StatusOK}
		}
		p.failureDescription = nil
		p.currentTest = ""
		return
	}

	if m := matchAtStart(testFailRE, line); m != nil {
		name := m[1]
		status := p.StatusOf(name)
		if status != StatusStarted && status != StatusFailed && status != StatusTimeout {
			p.recordError(line, fmt.Sprintf("failure while in status %s", status))
		}
		// Don't overwrite the failure description when a failing test is
		// listed a second time in the summary, or when it was already
		// recorded as timing out.
		if status != StatusFailed && status != StatusTimeout {
			p.tests[name] = &testRecord{
				status:      StatusFailed,
				description: append([]string(nil), p.failureDescription...),
			}
		}
		p.failureDescription = nil
		p.currentTest = ""
		return
	}

	if m := testTimeoutRE.FindStringSubmatch(line); m != nil {
		name := m[1]
		status := p.StatusOf(name)
		if status != StatusStarted && status != StatusFailed {
			p.recordError(line, fmt.Sprintf("timeout while in status %s", status))
		}
		p.tests[name] = &testRecord{
			status:      StatusTimeout,
			description: append(append([]string(nil), p.failureDescription...), "Killed (timed out)."),
		}
		p.failureDescription = nil
		p.currentTest = ""
		return
	}

	if m := suppressionStartRE.FindStringSubmatch(line); m != nil {
		hash := m[1]
		if _, ok := p.suppressions[hash]; ok {
			p.recordError(line, "suppression reported more than once")
		}
		p.suppressions[hash] = nil
		p.currentSuppressionHash = hash
		p.currentSuppression = []string{line}
		return
	}

	if suppressionEndRE.MatchString(line) && p.currentSuppressionHash != "" {
		p.currentSuppression = append(p.currentSuppression, line)
		p.suppressions[p.currentSuppressionHash] = p.currentSuppression
		p.currentSuppressionHash = ""
		p.currentSuppression = nil
		return
	}

	if retryMessageRE.MatchString(line) {
		p.retryingFailed = true
		return
	}

	// Inside a suppression block every line belongs to it; suppressions are
	// printed after all tests have finished.
	if p.currentSuppressionHash != "" {
		p.currentSuppression = append(p.currentSuppression, line)
		return
	}

	// Inside a test, collect the line for the failure description. Tests
	// may run simultaneously, so attribution is approximate.
	if p.currentTest != "" {
		p.failureDescription = append(p.failureDescription, line)
	}

	// The trailing "Failing tests:" list catches tests that crashed after
	// their OK line was already printed.
	if p.parsingFailures {
		if m := testNameRE.FindStringSubmatch(line); m != nil {
			name := m[1]
			if status := p.StatusOf(name); status == StatusNotKnown || status == StatusOK {
				p.tests[name] = &testRecord{
					status:      StatusFailed,
					description: []string{"Unknown error, see stdio log."},
				}
			}
		} else {
			p.parsingFailures = false
		}
	} else if strings.HasPrefix(line, "Failing tests:") {
		p.parsingFailures = true
	}
}

// forceTimeout moves a still-started test to timeout; it presumably crashed
// or hung. Output collected since its RUN line becomes the description,
// otherwise the placeholder description is kept.
func (p *LogParser) forceTimeout(rec *testRecord) {
	rec.status = StatusTimeout
	if len(p.failureDescription) > 0 {
		rec.description = append([]string(nil), p.failureDescription...)
	}
}

func updateCount(current Count, digits string) Count {
	n, err := strconv.Atoi(digits)
	if err != nil {
		n = 0
	}
	if n > 0 && !current.Indeterminate {
		current.N = n
		return current
	}
	// The banner was there but the number is unusable; record that at
	// least "some" tests were affected rather than dropping the signal.
	return Count{Indeterminate: true}
}

func matchAtStart(re *regexp.Regexp, line string) []string {
	loc := re.FindStringSubmatchIndex(line)
	if loc == nil || loc[0] != 0 {
		return nil
	}
	return []string{line[loc[0]:loc[1]], line[loc[2]:loc[3]]}
}

func (p *LogParser) recordError(line, reason string) {
	p.internalErrorLines = append(p.internalErrorLines,
		fmt.Sprintf("%d: %s [%s]", p.lineNumber, strings.TrimSpace(line), reason))
}

// MasterName returns the master name from the run banner, first occurrence
// wins.
func (p *LogParser) MasterName() string { return p.masterName }

// Completed reports whether the all-tests-passed banner was seen.
func (p *LogParser) Completed() bool { return p.completed }

// CurrentTest returns the test currently being tracked, "" if none.
func (p *LogParser) CurrentTest() string { return p.currentTest }

// RetryingFailed reports whether the parser is inside the retry section.
func (p *LogParser) RetryingFailed() bool { return p.retryingFailed }

// StatusOf returns the status recorded for the given test, StatusNotKnown
// if the test never appeared.
func (p *LogParser) StatusOf(test string) TestStatus {
	if rec, ok := p.tests[test]; ok {
		return rec.status
	}
	return StatusNotKnown
}

// testsByStatus returns the sorted list of tests in the given status.
// Tests whose names carry the FAILS_ or FLAKY_ markers are excluded unless
// requested; those conventions mark expected failures.
func (p *LogParser) testsByStatus(status TestStatus, includeFails, includeFlaky bool) []string {
	var list []string
	for name, rec := range p.tests {
		if rec.status != status {
			continue
		}
		if !includeFails && strings.Contains(name, "FAILS_") {
			continue
		}
		if !includeFlaky && strings.Contains(name, "FLAKY_") {
			continue
		}
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// RunningTests returns tests that appear to be currently running.
func (p *LogParser) RunningTests() []string {
	return p.testsByStatus(StatusStarted, true, true)
}

// FailedTests returns tests that failed, timed out, passed only on retry,
// or never finished. The list is incorrect until the complete log has been
// processed, because it reports still-running tests as failed.
func (p *LogParser) FailedTests(includeFails, includeFlaky bool) []string {
	list := p.testsByStatus(StatusFailed, includeFails, includeFlaky)
	list = append(list, p.testsByStatus(StatusTimeout, true, true)...)
	list = append(list, p.testsByStatus(StatusWarning, includeFails, includeFlaky)...)
	return append(list, p.RunningTests()...)
}

// DisabledTests returns the number of disabled tests, possibly
// indeterminate.
func (p *LogParser) DisabledTests() Count { return p.disabledTests }

// FlakyTests returns the number of flaky tests, possibly indeterminate.
func (p *LogParser) FlakyTests() Count { return p.flakyTests }

// FailureDescription returns the failure text recorded for the given test,
// prefixed with the test name.
func (p *LogParser) FailureDescription(test string) []string {
	lines := []string{test + ": "}
	if rec, ok := p.tests[test]; ok {
		lines = append(lines, rec.description...)
	}
	return lines
}

// SuppressionHashes returns the sorted hashes of all suppressions seen.
func (p *LogParser) SuppressionHashes() []string {
	hashes := make([]string, 0, len(p.suppressions))
	for hash := range p.suppressions {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	return hashes
}

// Suppression returns the verbatim lines of the suppression with the given
// hash, boundary lines included.
func (p *LogParser) Suppression(hash string) []string {
	return append([]string(nil), p.suppressions[hash]...)
}

// CompletedWithoutFailure reports whether all tests completed and none
// failed unexpectedly.
func (p *LogParser) CompletedWithoutFailure() bool {
	return p.completed && len(p.FailedTests(false, false)) == 0
}

// ParsingErrors returns the lines that produced parsing errors.
func (p *LogParser) ParsingErrors() []string {
	return append([]string(nil), p.internalErrorLines...)
}

// ClearParsingErrors discards the stored parsing errors.
func (p *LogParser) ClearParsingErrors() {
	p.internalErrorLines = []string{"Cleared."}
}
