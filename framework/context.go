package framework

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
	baseCtx    context.Context
}

// Context represents a test or subtest. It is the lowest-level equivalent of Go's *testing.T:
// it accumulates errors, can stop the test immediately with FailNow, can skip, and holds deferred
// cleanup functions that run when the test ends regardless of how it ended.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	warnings    []string
	deferred    []func()
}

// Run starts a test run. The action receives the root context; it normally calls Run on it
// once for each top-level group of tests.
func Run(
	ctx context.Context,
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
		baseCtx:    ctx,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.recordPanic(r)
		}
		c.runDeferred()
		if len(c.id.Path) == 0 {
			return
		}
		result := TestResult{
			TestID:     c.id,
			Errors:     c.errors,
			Warnings:   c.warnings,
			Skipped:    c.skipped,
			SkipReason: c.skipReason,
			Duration:   time.Since(started),
		}
		// A skipped test can still have run cleanups that warned.
		if len(c.warnings) > 0 {
			c.env.results.Warnings = append(c.env.results.Warnings, result)
		}
		if c.skipped {
			return
		}
		c.env.results.Tests = append(c.env.results.Tests, result)
		if c.failed {
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
	}()

	action(c)
}

func (c *Context) recordPanic(r interface{}) {
	if c.skipped {
		return
	}
	c.failed = true
	var addError error
	if _, ok := r.(*Context); ok {
		if len(c.errors) == 0 {
			addError = errors.New("test failed with no failure message")
		}
	} else {
		addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
	}
	if addError != nil {
		c.errors = append(c.errors, addError)
		c.env.testLogger.TestError(c.id, addError)
	}
}

// Deferred functions run last-in first-out. A panic inside one of them is turned into a warning
// so that the remaining cleanups still run and the test outcome is left alone.
func (c *Context) runDeferred() {
	for len(c.deferred) > 0 {
		fn := c.deferred[len(c.deferred)-1]
		c.deferred = c.deferred[:len(c.deferred)-1]
		func() {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(*Context); ok {
						c.Warnf("cleanup tried to fail the test after it had finished")
						return
					}
					c.Warnf("panic in cleanup: %+v", r)
				}
			}()
			fn()
		}()
	}
}

// ID returns the identifier of this test.
func (c *Context) ID() TestID {
	return c.id
}

// Context returns the context.Context that blocking operations within the test should use.
func (c *Context) Context() context.Context {
	return c.env.baseCtx
}

// Run runs a subtest with its own Context. Subtests excluded by the filter are reported as
// skipped without being started.
func (c *Context) Run(name string, action func(*Context)) {
	id := c.id.Plus(name)

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action)
	if c1.skipped {
		c.env.results.Skipped = append(c.env.results.Skipped, TestResult{
			TestID:     id,
			Skipped:    true,
			SkipReason: c1.skipReason,
			Warnings:   c1.warnings,
		})
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
}

// Errorf records a failure without stopping the test.
func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, reformatError(err))
}

// Warnf records a problem that should be reported but does not make the test fail, such as a
// cleanup step that could not be completed.
func (c *Context) Warnf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	c.warnings = append(c.warnings, message)
	c.debugLogger.Printf("WARNING: %s", message)
	c.env.testLogger.TestWarning(c.id, message)
}

// FailNow stops the test immediately. Deferred functions still run.
func (c *Context) FailNow() {
	panic(c)
}

// Failed reports whether the test has failed so far.
func (c *Context) Failed() bool {
	return c.failed
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

// Defer schedules a function to run when the test ends, whether it passed, failed, was skipped
// or panicked.
func (c *Context) Defer(fn func()) {
	c.deferred = append(c.deferred, fn)
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}
