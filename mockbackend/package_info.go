// Package mockbackend contains a fake of the auth platform and the backend functions under test.
//
// It answers the same routes as a real deployment (token grant, logout, user info, admin user
// management, signup and the payment webhook), in either the current or the legacy error
// contract, so that the contract suites can be run against it in process or from the
// "mock-backend" command.
package mockbackend
