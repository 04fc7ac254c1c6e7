package framework

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skipped  []TestResult
	Warnings []TestResult
}

type TestResult struct {
	TestID     TestID
	Errors     []error
	Warnings   []string
	Skipped    bool
	SkipReason string
	Duration   time.Duration
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Find returns the result for a test with the given path, if it ran.
func (r Results) Find(path ...string) (TestResult, bool) {
	want := TestID{Path: path}.String()
	for _, t := range r.Tests {
		if t.TestID.String() == want {
			return t, true
		}
	}
	return TestResult{}, false
}

type TestID struct {
	Path []string
}

// Plus returns a new TestID for a subtest of this one.
func (t TestID) Plus(name string) TestID {
	path := make([]string, 0, len(t.Path)+1)
	path = append(path, t.Path...)
	return TestID{Path: append(path, name)}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

// PrintResults writes a summary of the run. Failed tests are listed with their errors, and tests
// that produced warnings are listed separately since warnings do not count as failures.
func PrintResults(out io.Writer, results Results) {
	passed := len(results.Tests) - len(results.Failures)
	fmt.Fprintf(out, "Ran %d tests: %d passed, %d failed, %d skipped\n",
		len(results.Tests), passed, len(results.Failures), len(results.Skipped))

	if len(results.Warnings) > 0 {
		warn := color.New(color.FgYellow)
		warn.Fprintf(out, "Warnings (%d):\n", len(results.Warnings))
		for _, r := range results.Warnings {
			for _, w := range r.Warnings {
				fmt.Fprintf(out, "  [%s] %s\n", r.TestID, w)
			}
		}
	}

	if results.OK() {
		color.New(color.FgGreen).Fprintln(out, "All tests passed")
		return
	}
	fail := color.New(color.FgRed)
	fail.Fprintf(out, "Failed tests (%d):\n", len(results.Failures))
	for _, r := range results.Failures {
		fmt.Fprintf(out, "  %s\n", r.TestID)
		for _, err := range r.Errors {
			for _, line := range strings.Split(reformatError(err).Error(), "\n") {
				fmt.Fprintf(out, "      %s\n", line)
			}
		}
	}
}
