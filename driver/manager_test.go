package driver

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selenium-go/testenv/logging"
)

type fakeSession struct {
	id        string
	quitCount int
	quitErr   error
}

func (s *fakeSession) ID() string             { return s.id }
func (s *fakeSession) BrowserVersion() string { return "1.0" }
func (s *fakeSession) Quit() error {
	s.quitCount++
	return s.quitErr
}

// fakeFactory fails for as long as failures has entries, consuming one per call.
type fakeFactory struct {
	calls    int
	failures []error
	created  []*fakeSession
	lastOpts Options
	lastKind Kind
}

func (f *fakeFactory) NewSession(kind Kind, opts Options) (Session, error) {
	f.calls++
	f.lastKind = kind
	f.lastOpts = opts
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	s := &fakeSession{id: fmt.Sprintf("session-%d", f.calls)}
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeFactory) failNext(errs ...error) {
	f.failures = append(f.failures, errs...)
}

func newTestManager(f Factory) *Manager {
	return NewManager(ManagerConfig{Driver: Chrome, Factory: f})
}

func requireInvariant(t *testing.T, m *Manager) {
	t.Helper()
	assert.Equal(t, m.FailureCount() > 0, m.LastError() != nil,
		"failure count %d inconsistent with last error %v", m.FailureCount(), m.LastError())
}

func TestAcquireCreatesOnceAndReuses(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	s1, err := m.Acquire(Options{})
	require.NoError(t, err)
	s2, err := m.Acquire(Options{})
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, Chrome, f.lastKind)
}

func TestFewerThanMaxFailuresAreNotThrottled(t *testing.T) {
	for n := 1; n < MaxCreateErrors; n++ {
		t.Run(fmt.Sprintf("%d failures", n), func(t *testing.T) {
			f := &fakeFactory{}
			m := newTestManager(f)
			for i := 0; i < n; i++ {
				f.failNext(fmt.Errorf("failure %d", i+1))
				_, err := m.CreateDriver(Options{})
				require.Error(t, err)
			}

			_, err := m.CreateDriver(Options{})
			require.NoError(t, err)
			assert.Equal(t, n+1, f.calls)
		})
	}
}

func TestThrottledAfterMaxFailures(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	f.failNext(errors.New("F1"), errors.New("F2"), errors.New("F3"), errors.New("F4"))

	for i := 0; i < MaxCreateErrors; i++ {
		_, err := m.CreateDriver(Options{})
		require.Error(t, err)
		var throttled *ThrottledError
		assert.False(t, errors.As(err, &throttled), "attempt %d should reach the factory", i+1)
	}
	require.Equal(t, 4, f.calls)

	_, err := m.CreateDriver(Options{})
	require.Error(t, err)

	var throttled *ThrottledError
	require.True(t, errors.As(err, &throttled))
	assert.Equal(t, 4, throttled.Count)
	assert.Equal(t, Chrome, throttled.Driver)
	assert.Equal(t, "previous 4 instantiations of driver chrome failed, not trying again (F4)", err.Error())
	assert.Contains(t, err.Error(), "4")
	assert.Contains(t, err.Error(), "F4")
	assert.Equal(t, 4, f.calls, "throttled call must not reach the factory")
	assert.Equal(t, 4, m.FailureCount(), "throttling does not change the failure count")
}

func TestThrottledErrorUnwrapsToLastFailure(t *testing.T) {
	cause := errors.New("chromedriver not found")
	f := &fakeFactory{}
	m := newTestManager(f)
	for i := 0; i < MaxCreateErrors; i++ {
		f.failNext(cause)
		_, _ = m.CreateDriver(Options{})
	}

	_, err := m.Acquire(Options{})
	assert.True(t, errors.Is(err, cause))
}

func TestSuccessDecrementsFailureCountByOne(t *testing.T) {
	const k = 3
	f := &fakeFactory{}
	m := newTestManager(f)
	for i := 0; i < k; i++ {
		f.failNext(errors.New("boom"))
		_, _ = m.CreateDriver(Options{})
	}
	require.Equal(t, k, m.FailureCount())
	requireInvariant(t, m)

	for remaining := k - 1; remaining >= 0; remaining-- {
		_, err := m.CreateDriver(Options{})
		require.NoError(t, err)
		assert.Equal(t, remaining, m.FailureCount())
		requireInvariant(t, m)
	}
	assert.Nil(t, m.LastError())
}

func TestThrottleHoldsUntilFailuresAreForgotten(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	for i := 0; i < MaxCreateErrors; i++ {
		f.failNext(errors.New("down"))
		_, _ = m.CreateDriver(Options{})
	}

	var throttled *ThrottledError
	for i := 0; i < 3; i++ {
		_, err := m.CreateDriver(Options{})
		require.True(t, errors.As(err, &throttled))
	}
	assert.Equal(t, MaxCreateErrors, f.calls)

	m.ForgetFailures()
	assert.Equal(t, 0, m.FailureCount())
	requireInvariant(t, m)

	_, err := m.CreateDriver(Options{})
	require.NoError(t, err)
	assert.Equal(t, MaxCreateErrors+1, f.calls)
}

func TestFailureIsReturnedAndNotRetried(t *testing.T) {
	cause := errors.New("session not created")
	f := &fakeFactory{}
	f.failNext(cause)
	m := newTestManager(f)

	s, err := m.Acquire(Options{})
	assert.Nil(t, s)
	assert.Same(t, cause, err)
	assert.Equal(t, 1, f.calls)
	assert.Nil(t, m.Current())
	assert.Equal(t, 1, m.FailureCount())
	requireInvariant(t, m)
}

func TestReleaseThenAcquireCreatesNewSession(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	s1, err := m.Acquire(Options{})
	require.NoError(t, err)
	m.Release()
	assert.Nil(t, m.Current())
	assert.Equal(t, 1, f.created[0].quitCount)

	s2, err := m.Acquire(Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
	assert.NotSame(t, s1, s2)
}

func TestReleaseSwallowsQuitErrorAndForgetsSession(t *testing.T) {
	f := &fakeFactory{}
	var debug logging.CapturingLogger
	m := NewManager(ManagerConfig{Driver: Firefox, Factory: f, Logger: &debug})

	_, err := m.Acquire(Options{})
	require.NoError(t, err)
	f.created[0].quitErr = errors.New("browser already gone")

	assert.NotPanics(t, m.Release)
	assert.Nil(t, m.Current())

	var found bool
	for _, msg := range debug.Output() {
		if strings.Contains(msg.Message, "browser already gone") {
			found = true
		}
	}
	assert.True(t, found, "quit error should be logged")
}

func TestReleaseWithoutSessionIsNoOp(t *testing.T) {
	m := newTestManager(&fakeFactory{})
	assert.NotPanics(t, m.Release)
	assert.NotPanics(t, m.Release)
}

func TestCreateDriverReleasesHeldSession(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	_, err := m.Acquire(Options{})
	require.NoError(t, err)
	s2, err := m.CreateDriver(Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.created[0].quitCount)
	assert.Same(t, s2, m.Current())
}

func TestScopedUseQuitsAfterBodyReturns(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	var seen Session
	err := m.ScopedUse(Options{}, func(s Session) error {
		seen = s
		return nil
	})
	require.NoError(t, err)
	require.Len(t, f.created, 1)
	assert.Same(t, f.created[0], seen)
	assert.Equal(t, 1, f.created[0].quitCount)
	assert.Nil(t, m.Current(), "scoped session must not become the shared one")
}

func TestScopedUseQuitsWhenBodyFails(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	bodyErr := errors.New("assertion failed")

	err := m.ScopedUse(Options{}, func(Session) error { return bodyErr })

	assert.Same(t, bodyErr, err)
	assert.Equal(t, 1, f.created[0].quitCount)
	assert.Equal(t, 0, m.FailureCount(), "body errors are not creation failures")
}

func TestScopedUseQuitsWhenBodyPanics(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = m.ScopedUse(Options{}, func(Session) error { panic("kaboom") })
	})
	require.Len(t, f.created, 1)
	assert.Equal(t, 1, f.created[0].quitCount)
}

func TestScopedUseQuitErrorIsSwallowed(t *testing.T) {
	m := newTestManager(FactoryFunc(func(Kind, Options) (Session, error) {
		return &fakeSession{id: "x", quitErr: errors.New("quit failed")}, nil
	}))
	err := m.ScopedUse(Options{}, func(Session) error { return nil })
	assert.NoError(t, err)
}

func TestScopedUseIsThrottled(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	for i := 0; i < MaxCreateErrors; i++ {
		f.failNext(errors.New("nope"))
		_, _ = m.CreateDriver(Options{})
	}

	called := false
	err := m.ScopedUse(Options{}, func(Session) error {
		called = true
		return nil
	})
	var throttled *ThrottledError
	assert.True(t, errors.As(err, &throttled))
	assert.False(t, called)
}

func TestResetReleasesSleepsAndAcquires(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	var events []string
	m.sleep = func(d time.Duration) {
		events = append(events, fmt.Sprintf("sleep %s (quit=%d)", d, f.created[0].quitCount))
	}

	s1, err := m.Acquire(Options{})
	require.NoError(t, err)
	s2, err := m.Reset(250*time.Millisecond, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"sleep 250ms (quit=1)"}, events)
	assert.NotSame(t, s1, s2)
	assert.Same(t, s2, m.Current())
	assert.Equal(t, 2, f.calls)
}

func TestResetActuallyWaits(t *testing.T) {
	m := newTestManager(&fakeFactory{})
	_, err := m.Acquire(Options{})
	require.NoError(t, err)

	delay := 20 * time.Millisecond
	start := time.Now()
	_, err = m.Reset(delay, Options{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

func TestResetWithoutSessionAcquires(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	m.sleep = func(time.Duration) {}

	s, err := m.Reset(0, Options{})
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, 1, f.calls)
}

func TestBuilderIsAppliedForBrowserKind(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(ManagerConfig{
		Driver:  Remote,
		Browser: Firefox,
		Factory: f,
		Builder: TableBuilder{Settings: BuildSettings{Headless: true}},
	})

	_, err := m.Acquire(Options{Args: []string{"--width=800"}})
	require.NoError(t, err)
	assert.Equal(t, Remote, f.lastKind)
	assert.Equal(t, []string{"--width=800", "--headless"}, f.lastOpts.Args)
}

func TestBuilderErrorCountsAsCreationFailure(t *testing.T) {
	f := &fakeFactory{}
	m := NewManager(ManagerConfig{Driver: Chrome, Browser: Kind("netscape"), Factory: f})

	_, err := m.Acquire(Options{})
	require.Error(t, err)
	assert.Equal(t, 0, f.calls)
	assert.Equal(t, 1, m.FailureCount())
	requireInvariant(t, m)
}

func TestNewManagerRequiresFactory(t *testing.T) {
	assert.Panics(t, func() { NewManager(ManagerConfig{Driver: Chrome}) })
}

func TestManagerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := &fakeFactory{}
	m := NewManager(ManagerConfig{Driver: Edge, Factory: f, Metrics: metrics})

	for i := 0; i < MaxCreateErrors; i++ {
		f.failNext(errors.New("x"))
		_, _ = m.CreateDriver(Options{})
	}
	_, _ = m.CreateDriver(Options{})

	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.failed.WithLabelValues("edge")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.throttled.WithLabelValues("edge")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.created.WithLabelValues("edge")))

	m2 := NewManager(ManagerConfig{Driver: Edge, Factory: &fakeFactory{}, Metrics: metrics})
	_, err := m2.Acquire(Options{})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.active.WithLabelValues("edge")))
	m2.Release()
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.active.WithLabelValues("edge")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.released.WithLabelValues("edge")))
}
