package framework

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Merge combines the results of several independent runs, such as the runs of separate workers.
func Merge(all ...Results) Results {
	var ret Results
	for _, r := range all {
		ret.Tests = append(ret.Tests, r.Tests...)
		ret.Failures = append(ret.Failures, r.Failures...)
	}
	return ret
}

// Skipped returns the results of tests that were skipped rather than run to completion.
func (r Results) Skipped() []TestResult {
	return lo.Filter(r.Tests, func(t TestResult, _ int) bool { return t.Skipped })
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

// PrintResults writes a summary of the test run to standard output.
func PrintResults(results Results) {
	skipped := len(results.Skipped())
	if results.OK() {
		color.Green("All tests passed (%d run, %d skipped)", len(results.Tests)-skipped, skipped)
		return
	}
	color.Red("FAILED TESTS (%d of %d):", len(results.Failures), len(results.Tests)-skipped)
	for _, f := range results.Failures {
		fmt.Printf("  * %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Printf("      %s\n", line)
			}
		}
	}
}
