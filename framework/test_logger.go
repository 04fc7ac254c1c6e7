package framework

import (
	"errors"
	"strings"
)

// TestLogger receives notifications about test progress as the run proceeds.
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestWarning(id TestID, message string)
	TestFinished(id TestID, failed bool, debugOutput CapturedOutput)
	TestSkipped(id TestID, reason string)
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                        {}
func (n nullTestLogger) TestError(TestID, error)                   {}
func (n nullTestLogger) TestWarning(TestID, string)                {}
func (n nullTestLogger) TestFinished(TestID, bool, CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                {}

// testify formats its messages for the go test runner: a leading newline and tab-indented
// "Error Trace:" blocks. Strip that so the output reads well in a plain console.
func reformatError(err error) error {
	s := strings.TrimSpace(err.Error())
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimPrefix(line, "\t")
		if strings.HasPrefix(strings.TrimSpace(line), "Error Trace:") {
			continue
		}
		out = append(out, line)
	}
	return errors.New(strings.Join(out, "\n"))
}
