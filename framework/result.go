package framework

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
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

// Count returns the number of checks that passed, failed, and were skipped.
func (r Results) Count() (passed, failed, skipped int) {
	failed = len(r.Failures)
	for _, t := range r.Tests {
		if t.Skipped {
			skipped++
		}
	}
	passed = len(r.Tests) - failed - skipped
	return
}

type TestID struct {
	Path []string
}

// Plus returns the identifier of a nested check.
func (t TestID) Plus(name string) TestID {
	path := make([]string, 0, len(t.Path)+1)
	path = append(path, t.Path...)
	return TestID{Path: append(path, name)}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// PrintResults writes a summary of results to w.
func PrintResults(w io.Writer, results Results) {
	passed, failed, skipped := results.Count()
	if results.OK() {
		color.New(color.FgGreen).Fprintf(w, "All checks passed (%d passed, %d skipped)\n", passed, skipped)
		return
	}
	color.New(color.FgRed).Fprintf(w, "%d of %d checks failed (%d skipped):\n", failed, passed+failed, skipped)
	for _, f := range results.Failures {
		fmt.Fprintf(w, "  %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}
