package framework

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTestLogger struct {
	events []string
}

func (r *recordingTestLogger) TestStarted(id TestID) {
	r.events = append(r.events, "start "+id.String())
}

func (r *recordingTestLogger) TestError(id TestID, err error) {
	r.events = append(r.events, "error "+id.String())
}

func (r *recordingTestLogger) TestWarning(id TestID, message string) {
	r.events = append(r.events, "warning "+id.String()+": "+message)
}

func (r *recordingTestLogger) TestFinished(id TestID, failed bool, debugOutput CapturedOutput) {
	r.events = append(r.events, fmt.Sprintf("finish %s failed=%t", id, failed))
}

func (r *recordingTestLogger) TestSkipped(id TestID, reason string) {
	r.events = append(r.events, "skip "+id.String()+": "+reason)
}

func TestRunCollectsResults(t *testing.T) {
	logger := &recordingTestLogger{}
	results := Run(context.Background(), nil, logger, func(c *Context) {
		c.Run("passes", func(c *Context) {})
		c.Run("fails", func(c *Context) {
			c.Errorf("first")
			c.Errorf("second")
		})
		c.Run("fails now", func(c *Context) {
			c.Errorf("stop")
			c.FailNow()
			c.Errorf("never reached")
		})
		c.Run("skips", func(c *Context) { c.SkipWithReason("not today") })
	})

	assert.False(t, results.OK())
	assert.Len(t, results.Tests, 3)
	require.Len(t, results.Failures, 2)
	assert.Len(t, results.Failures[0].Errors, 2)
	assert.Len(t, results.Failures[1].Errors, 1)
	require.Len(t, results.Skipped, 1)
	assert.Equal(t, "not today", results.Skipped[0].SkipReason)
	assert.Equal(t, []string{
		"start passes", "finish passes failed=false",
		"start fails", "error fails", "error fails", "finish fails failed=true",
		"start fails now", "error fails now", "finish fails now failed=true",
		"start skips", "skip skips: not today",
	}, logger.events)
}

func TestSubtestIDs(t *testing.T) {
	var ids []string
	results := Run(context.Background(), nil, nil, func(c *Context) {
		c.Run("a", func(c *Context) {
			c.Run("b", func(c *Context) { ids = append(ids, c.ID().String()) })
		})
	})
	assert.Equal(t, []string{"a/b"}, ids)
	_, ok := results.Find("a", "b")
	assert.True(t, ok)
}

func TestFilterExcludesTests(t *testing.T) {
	var ran []string
	filter := func(id TestID) bool { return id.String() != "b" }
	Run(context.Background(), filter, nil, func(c *Context) {
		for _, name := range []string{"a", "b", "c"} {
			c.Run(name, func(c *Context) { ran = append(ran, c.ID().String()) })
		}
	})
	assert.Equal(t, []string{"a", "c"}, ran)
}

func TestUnexpectedPanicFailsTest(t *testing.T) {
	results := Run(context.Background(), nil, nil, func(c *Context) {
		c.Run("panics", func(c *Context) { panic(errors.New("boom")) })
		c.Run("still runs", func(c *Context) {})
	})
	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "unexpected panic in test: boom")
	_, ok := results.Find("still runs")
	assert.True(t, ok)
}

func TestDeferredFunctionsRunInReverseOrderWhateverTheOutcome(t *testing.T) {
	outcomes := map[string]func(c *Context){
		"pass":     func(c *Context) {},
		"fail now": func(c *Context) { c.FailNow() },
		"skip":     func(c *Context) { c.Skip() },
		"panic":    func(c *Context) { panic("x") },
	}
	for name, action := range outcomes {
		t.Run(name, func(t *testing.T) {
			var order []int
			Run(context.Background(), nil, nil, func(c *Context) {
				c.Run("test", func(c *Context) {
					c.Defer(func() { order = append(order, 1) })
					c.Defer(func() { order = append(order, 2) })
					action(c)
				})
			})
			assert.Equal(t, []int{2, 1}, order)
		})
	}
}

func TestProblemsInCleanupAreWarnings(t *testing.T) {
	logger := &recordingTestLogger{}
	ranFirst := false
	results := Run(context.Background(), nil, logger, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.Defer(func() { ranFirst = true })
			c.Defer(func() { c.FailNow() })
			c.Defer(func() { panic("cleanup broke") })
		})
	})

	assert.True(t, ranFirst)
	assert.True(t, results.OK())
	require.Len(t, results.Warnings, 1)
	assert.Equal(t, []string{
		"panic in cleanup: cleanup broke",
		"cleanup tried to fail the test after it had finished",
	}, results.Warnings[0].Warnings)
	assert.Contains(t, logger.events, "warning test: panic in cleanup: cleanup broke")
}

func TestWarningsFromCleanupOfSkippedTestAreKept(t *testing.T) {
	results := Run(context.Background(), nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.Defer(func() { c.Warnf("could not release resource") })
			c.SkipWithReason("missing capability")
		})
	})

	assert.True(t, results.OK())
	assert.Empty(t, results.Tests)
	require.Len(t, results.Skipped, 1)
	assert.Equal(t, []string{"could not release resource"}, results.Skipped[0].Warnings)
	require.Len(t, results.Warnings, 1)
	assert.True(t, results.Warnings[0].Skipped)
	assert.Equal(t, "missing capability", results.Warnings[0].SkipReason)
	assert.Equal(t, []string{"could not release resource"}, results.Warnings[0].Warnings)
}

func TestWarningsDoNotFailTests(t *testing.T) {
	results := Run(context.Background(), nil, nil, func(c *Context) {
		c.Run("warns", func(c *Context) {
			c.Warnf("payment lookup surfaced as %d", 500)
		})
	})
	assert.True(t, results.OK())
	r, ok := results.Find("warns")
	require.True(t, ok)
	assert.Equal(t, []string{"payment lookup surfaced as 500"}, r.Warnings)
}

func TestContextIsPassedThrough(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")
	var got interface{}
	Run(ctx, nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) { got = c.Context().Value(key{}) })
	})
	assert.Equal(t, "value", got)
}

func TestDebugOutputIsCapturedPerTest(t *testing.T) {
	var captured CapturedOutput
	logger := &capturingTestLogger{onFinish: func(out CapturedOutput) { captured = out }}
	Run(context.Background(), nil, logger, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.Debug("hello %s", "there")
			c.DebugLogger().Printf("again")
		})
	})
	require.Len(t, captured, 2)
	assert.Equal(t, "hello there", captured[0].Message)
	assert.Equal(t, "again", captured[1].Message)
}

type capturingTestLogger struct {
	nullTestLogger
	onFinish func(CapturedOutput)
}

func (c *capturingTestLogger) TestFinished(id TestID, failed bool, debugOutput CapturedOutput) {
	c.onFinish(debugOutput)
}

func TestReformatError(t *testing.T) {
	err := errors.New("\n\tError Trace:\tfile.go:12\n\tError:      \tNot equal\n")
	assert.Equal(t, "Error:      \tNot equal", reformatError(err).Error())
}
