// Package fixture contains the auxiliary servers a browser test run depends on: a static file
// server for test pages, and a Selenium Grid relay for the remote driver, either as a local jar
// or as a container.
//
// Every server implements Server. Start blocks until the server is ready to use; Stop is safe to
// call on a server that was never started, and safe to call more than once.
package fixture

// Server is a fixture that runs for the duration of a test session.
type Server interface {
	// Start launches the server and returns its base address once it is ready.
	Start() (string, error)

	// Stop shuts the server down. It is a no-op if the server is not running.
	Stop() error
}
