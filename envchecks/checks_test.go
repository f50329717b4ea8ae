package envchecks

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/selenium-go/testenv/config"
	"github.com/selenium-go/testenv/driver"
	"github.com/selenium-go/testenv/framework"
	"github.com/selenium-go/testenv/testenv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct{ quit int }

func (s *stubSession) ID() string             { return "stub" }
func (s *stubSession) BrowserVersion() string { return "1.0" }
func (s *stubSession) Quit() error {
	s.quit++
	return nil
}

func newEnv(t *testing.T, factory driver.Factory, withPage bool) *testenv.Environment {
	root := t.TempDir()
	dir := filepath.Join(root, testenv.AssetDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if withPage {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "simpleTest.html"), []byte("<p>hi</p>"), 0o644))
	}
	cfg := &config.Config{Driver: driver.Chrome, RemoteBrowser: driver.Chrome, GridMode: config.GridModeJar}
	env, err := testenv.New(testenv.Options{Config: cfg, Root: root, Factory: factory, Output: io.Discard})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Quit() })
	return env
}

func resultNames(results []framework.TestResult) []string {
	var names []string
	for _, r := range results {
		names = append(names, r.TestID.String())
	}
	return names
}

func TestAllChecksPass(t *testing.T) {
	var sessions []*stubSession
	factory := driver.FactoryFunc(func(driver.Kind, driver.Options) (driver.Session, error) {
		s := &stubSession{}
		sessions = append(sessions, s)
		return s, nil
	})
	env := newEnv(t, factory, true)

	results := Run(env, nil, nil)
	assert.True(t, results.OK(), "failures: %v", resultNames(results.Failures))
	passed, failed, skipped := results.Count()
	assert.Equal(t, 8, passed, "groups are counted along with their checks")
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, skipped, "grid check is skipped for local drivers")

	require.Len(t, sessions, 2)
	assert.Equal(t, 1, sessions[0].quit, "scoped session is quit")
	assert.Equal(t, 1, sessions[1].quit, "shared session is released at the end of its check")
	assert.Nil(t, env.Manager().Current())
}

func TestDriverFailuresAreReported(t *testing.T) {
	factory := driver.FactoryFunc(func(driver.Kind, driver.Options) (driver.Session, error) {
		return nil, errors.New("chromedriver not found")
	})
	env := newEnv(t, factory, true)

	results := Run(env, nil, nil)
	assert.Equal(t, []string{"driver/scoped session", "driver/shared session"}, resultNames(results.Failures))
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "chromedriver not found")
}

func TestAppServerCheckSkipsWithoutPages(t *testing.T) {
	env := newEnv(t, driver.FactoryFunc(func(driver.Kind, driver.Options) (driver.Session, error) {
		return &stubSession{}, nil
	}), false)

	var filters framework.RegexFilters
	require.NoError(t, filters.MustMatch.Set("^app server"))
	results := Run(env, filters.AsFilter, nil)
	assert.Equal(t, []string{"app server/serves test page", "app server"}, resultNames(results.Tests))
	assert.True(t, results.Tests[0].Skipped)
	assert.True(t, results.OK())
}
