// Package driver manages the browser-driver session used by an integration test run.
//
// The central type is Manager, which owns at most one shared session at a time, creates it on
// demand, disposes of it on request, and stops contacting the backend after repeated creation
// failures. How a session is actually created is delegated to a Factory (SeleniumFactory for
// WebDriver backends, PlaywrightFactory for Playwright), and how per-browser options are
// assembled is delegated to an OptionsBuilder (normally the static table in options.go).
//
// A Manager is meant to be used sequentially by a single test-execution context. Concurrent
// test runners should each own a separate Manager.
package driver
