package driver

import (
	"time"

	"github.com/selenium-go/testenv/logging"
)

// MaxCreateErrors is the number of consecutive creation failures after which the Manager stops
// contacting the backend.
const MaxCreateErrors = 4

// ManagerConfig contains the collaborators of a Manager.
type ManagerConfig struct {
	// Driver is the backend to create sessions with.
	Driver Kind

	// Browser selects the options builder. It defaults to Driver.
	Browser Kind

	Factory Factory

	// Builder defaults to a TableBuilder with zero settings.
	Builder OptionsBuilder

	Logger  logging.Logger
	Metrics *Metrics
}

// Manager owns the shared driver session of a test run.
//
// The failure counter is decremented by one on every successful creation rather than being
// reset, so after a long streak of failures several successes are needed before the Manager
// stops counting the backend as unreliable.
type Manager struct {
	driver  Kind
	browser Kind
	factory Factory
	builder OptionsBuilder
	logger  logging.Logger
	metrics *Metrics
	sleep   func(time.Duration)

	instance   Session
	lastErr    error
	errorCount int
}

// NewManager creates a Manager. It panics if no Factory is configured, since that is a
// mistake in the program's initialization logic.
func NewManager(c ManagerConfig) *Manager {
	if c.Factory == nil {
		panic("driver.NewManager requires a Factory")
	}
	m := &Manager{
		driver:  c.Driver,
		browser: c.Browser,
		factory: c.Factory,
		builder: c.Builder,
		logger:  c.Logger,
		metrics: c.Metrics,
		sleep:   time.Sleep,
	}
	if m.browser == "" {
		m.browser = m.driver
	}
	if m.builder == nil {
		m.builder = TableBuilder{}
	}
	if m.logger == nil {
		m.logger = logging.NullLogger()
	}
	return m
}

// Driver returns the driver kind this Manager creates sessions for.
func (m *Manager) Driver() Kind { return m.driver }

// Browser returns the browser kind used to build options.
func (m *Manager) Browser() Kind { return m.browser }

// Current returns the shared session, or nil if none is held.
func (m *Manager) Current() Session { return m.instance }

// FailureCount returns the number of consecutive creation failures not yet offset by successes.
func (m *Manager) FailureCount() int { return m.errorCount }

// LastError returns the most recent creation failure while the failure count is nonzero.
func (m *Manager) LastError() error { return m.lastErr }

// ForgetFailures clears the failure count and last error, lifting any throttling.
func (m *Manager) ForgetFailures() {
	m.errorCount = 0
	m.lastErr = nil
}

// Acquire returns the shared session, creating it if necessary.
func (m *Manager) Acquire(opts Options) (Session, error) {
	if m.instance != nil {
		return m.instance, nil
	}
	return m.CreateDriver(opts)
}

// CreateDriver creates a new shared session. A session that is already held is released first,
// so the Manager never owns two sessions at once.
//
// Each call makes at most one attempt. If it fails, the error is returned to the caller and
// counted; once MaxCreateErrors failures have accumulated, subsequent calls return a
// *ThrottledError without contacting the backend.
func (m *Manager) CreateDriver(opts Options) (Session, error) {
	if m.instance != nil {
		m.Release()
	}
	s, err := m.newSession(opts)
	if err != nil {
		return nil, err
	}
	m.instance = s
	return s, nil
}

// Reset releases the shared session, waits for delay, and acquires a new one.
func (m *Manager) Reset(delay time.Duration, opts Options) (Session, error) {
	m.Release()
	if delay > 0 {
		m.sleep(delay)
	}
	return m.Acquire(opts)
}

// Release terminates the shared session, if any. The session is forgotten even if terminating
// it fails; such failures are only logged.
func (m *Manager) Release() {
	s := m.instance
	m.instance = nil
	if s != nil {
		m.quit(s)
	}
}

// ScopedUse creates a session that is not shared, passes it to body, and terminates it when body
// returns or panics. Creation is subject to the same failure accounting as CreateDriver; errors
// returned by body are not.
func (m *Manager) ScopedUse(opts Options, body func(Session) error) error {
	s, err := m.newSession(opts)
	if err != nil {
		return err
	}
	defer m.quit(s)
	return body(s)
}

func (m *Manager) newSession(opts Options) (Session, error) {
	if err := m.checkForPreviousError(); err != nil {
		m.metrics.createThrottled(m.driver)
		return nil, err
	}

	built, err := m.builder.Build(m.browser, opts)
	var s Session
	if err == nil {
		s, err = m.factory.NewSession(m.driver, built)
	}
	if err != nil {
		m.errorCount++
		m.lastErr = err
		m.metrics.createFailed(m.driver)
		m.logger.Printf("Failed to create %s driver (%d consecutive failures): %s", m.driver, m.errorCount, err)
		return nil, err
	}

	if m.errorCount > 0 {
		m.errorCount--
		if m.errorCount == 0 {
			m.lastErr = nil
		}
	}
	m.metrics.sessionCreated(m.driver)
	m.logger.Printf("Created %s driver session %s", m.driver, s.ID())
	return s, nil
}

func (m *Manager) checkForPreviousError() error {
	if m.lastErr == nil || m.errorCount < MaxCreateErrors {
		return nil
	}
	return &ThrottledError{Count: m.errorCount, Driver: m.driver, Err: m.lastErr}
}

func (m *Manager) quit(s Session) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Printf("Panic while quitting driver session %s: %v", s.ID(), r)
		}
	}()
	if err := s.Quit(); err != nil {
		m.logger.Printf("Ignoring error while quitting driver session %s: %s", s.ID(), err)
	} else {
		m.logger.Printf("Quit driver session %s", s.ID())
	}
	m.metrics.sessionReleased(m.driver)
}
