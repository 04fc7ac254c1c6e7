// Package apitests contains the contract tests for the auth API, the signup function and the
// payment webhook, and the supporting API those tests are written against.
//
// Infrastructure that is not specific to this domain, such as the test runner, result reporting
// and the shared HTTP session, is in the lower-level framework package.
package apitests
