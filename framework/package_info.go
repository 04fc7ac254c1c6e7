// Package framework contains the low-level implementation of test harness infrastructure
// that is not specific to the API under test.
//
// The general model is:
//
// 1. A single Session owns the HTTP client that every test uses to talk to the deployment
// being tested. It is created once for the run and closed once at the end.
//
// 2. There is a general notion of a test context which is similar to Go's testing.T,
// allowing pieces of test logic to be associated with a test identifier, to accumulate
// success/failure results, and to register cleanup that always runs when the test ends.
//
// 3. Tests that need an optional feature of the deployment declare a capability and are
// skipped when it is not available.
//
// The domain-specific code that knows what is being tested is responsible for building
// requests, provisioning fixtures, and providing a domain-specific test API on top of the
// test context.
package framework
