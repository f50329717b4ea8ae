package driver

// Session is a live connection to a browser-automation backend.
type Session interface {
	// ID identifies the session in logs.
	ID() string

	// BrowserVersion is the version reported by the backend, or "" if unknown.
	BrowserVersion() string

	// Quit terminates the session and any processes that were started for it.
	Quit() error
}

// Factory creates sessions for a driver kind.
type Factory interface {
	NewSession(kind Kind, opts Options) (Session, error)
}

// FactoryFunc allows a plain function to be used as a Factory.
type FactoryFunc func(kind Kind, opts Options) (Session, error)

func (f FactoryFunc) NewSession(kind Kind, opts Options) (Session, error) {
	return f(kind, opts)
}
