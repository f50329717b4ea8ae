package testenv

import "sync"

var (
	defaultLock sync.Mutex
	defaultEnv  *Environment
)

// Default returns the process-wide Environment, creating it from the process environment on
// first use. If creation fails, the error is returned and the next call tries again.
func Default() (*Environment, error) {
	defaultLock.Lock()
	defer defaultLock.Unlock()
	if defaultEnv != nil {
		return defaultEnv, nil
	}
	e, err := New(Options{})
	if err != nil {
		return nil, err
	}
	defaultEnv = e
	return e, nil
}

// SetDefault replaces the process-wide Environment and returns the previous one. Passing nil
// makes the next Default call create a new Environment.
func SetDefault(e *Environment) *Environment {
	defaultLock.Lock()
	defer defaultLock.Unlock()
	prev := defaultEnv
	defaultEnv = e
	return prev
}
