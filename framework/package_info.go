// Package framework contains a small test runner for checks that run outside of "go test",
// such as verifying that a test environment is usable before a long browser test run.
//
// The general model is similar to Go's *testing.T: a Context is associated with a test
// identifier and accumulates failures, nested checks are started with Context.Run, and a
// TestLogger reports progress as checks start and finish.
package framework
