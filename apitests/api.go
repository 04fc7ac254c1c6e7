package apitests

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/backend-qa/api-contract-tests/config"
	"github.com/backend-qa/api-contract-tests/framework"
	"github.com/backend-qa/api-contract-tests/logging"
	"github.com/backend-qa/api-contract-tests/servicedef"
)

// UserAdmin is the part of the platform admin API that fixtures need. It is implemented by
// *platform.AdminClient.
type UserAdmin interface {
	CreateUser(ctx context.Context, params servicedef.AdminCreateUserParams, logger framework.Logger) (servicedef.User, error)
	DeleteUser(ctx context.Context, id string, logger framework.Logger) error
}

type environment struct {
	config       *config.Config
	session      *framework.Session
	admin        UserAdmin
	capabilities framework.Capabilities
	logger       *zap.SugaredLogger
}

// T represents a test or subtest in the contract test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is
// outside of the Go test runner. Those features are provided by the framework package.
//
// It also gives tests access to everything a scenario needs: the run configuration, the shared
// HTTP session, request headers and payloads, and ephemeral users that are removed again when
// the test ends.
//
// To make test assertions, you can use the assert and require packages, passing the *T as if it
// were a *testing.T, or describe the expected response with a Contract.
type T struct {
	context *framework.Context
	env     *environment
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(&T{context: c, env: t.env})
	})
}

// ID returns the full name of the test.
func (t *T) ID() framework.TestID {
	return t.context.ID()
}

// Context is the context.Context for requests made by this test. It is cancelled if the run is
// interrupted.
func (t *T) Context() context.Context {
	return t.context.Context()
}

// Config returns the run configuration. Tests must not modify it.
func (t *T) Config() *config.Config {
	return t.env.config
}

// Capabilities returns the capabilities of this run's configuration.
func (t *T) Capabilities() framework.Capabilities {
	return t.env.capabilities
}

// RequireCapability skips this test if the configuration does not provide the capability.
func (t *T) RequireCapability(capability string) {
	if !t.env.capabilities.Has(capability) {
		t.context.SkipWithReason(fmt.Sprintf("configuration does not provide capability %q", capability))
	}
}

// Defer schedules a function to run when the test ends, however it ends.
func (t *T) Defer(fn func()) {
	t.context.Defer(fn)
}

// Warnf reports a problem that does not make the test fail.
func (t *T) Warnf(format string, args ...interface{}) {
	t.context.Warnf(format, args...)
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

func (t *T) DebugLogger() framework.Logger {
	return t.context.DebugLogger()
}

// Do sends a request through the shared session. A transport error fails the test immediately;
// requests are never retried.
func (t *T) Do(req framework.Request) *framework.Response {
	resp, err := t.env.session.Do(t.Context(), req, t.requestLogger())
	require.NoError(t, err, "request failed")
	return resp
}

// requestLogger is where request and response lines go: the test's debug output, and also the
// process log when that is at debug level.
func (t *T) requestLogger() framework.Logger {
	if t.env.logger == nil || !t.env.logger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		return t.DebugLogger()
	}
	return framework.MultiLogger(
		t.DebugLogger(),
		logging.FrameworkLogger(t.env.logger.With("test", t.ID().String())),
	)
}
