// Package envchecks verifies that a test environment is usable: that test pages are served,
// that driver sessions can be created and released, and that the grid answers for remote runs.
package envchecks

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/selenium-go/testenv/config"
	"github.com/selenium-go/testenv/driver"
	"github.com/selenium-go/testenv/fixture"
	"github.com/selenium-go/testenv/framework"
	"github.com/selenium-go/testenv/testenv"
)

const gridStatusTimeout = time.Second * 5

// Run executes every check against env and returns the results. The shared driver session and
// any servers started by the checks are left to env.Quit.
func Run(env *testenv.Environment, filter framework.Filter, testLogger framework.TestLogger) framework.Results {
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		c.Run("config", func(c *framework.Context) {
			c.Run("valid", func(c *framework.Context) { checkConfig(c, env) })
		})
		c.Run("app server", func(c *framework.Context) {
			c.Run("serves test page", func(c *framework.Context) { checkAppServer(c, env) })
		})
		c.Run("grid", func(c *framework.Context) {
			c.Run("reports ready", func(c *framework.Context) { checkGrid(c, env) })
		})
		c.Run("driver", func(c *framework.Context) {
			c.Run("scoped session", func(c *framework.Context) { checkScopedSession(c, env) })
			c.Run("shared session", func(c *framework.Context) { checkSharedSession(c, env) })
		})
	})
}

func checkConfig(c *framework.Context, env *testenv.Environment) {
	cfg := env.Config()
	c.Debug("driver=%s browser=%s grid_mode=%s", cfg.Driver, cfg.Browser(), cfg.GridMode)
	if err := config.Validate(cfg); err != nil {
		c.Errorf("%s", err)
	}
}

func checkAppServer(c *framework.Context, env *testenv.Environment) {
	s, err := env.AppServer()
	c.RequireNoError(err, "starting app server")
	page := firstPage(s.Root())
	if page == "" {
		c.SkipWithReason("no test pages in " + s.Root())
	}
	url, err := s.WhereIs(page)
	c.RequireNoError(err, "locating test page")
	c.Debug("GET %s", url)

	resp, err := http.Get(url)
	c.RequireNoError(err, "requesting test page")
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != 200 {
		c.Errorf("test page %s returned HTTP %d", url, resp.StatusCode)
	}
}

// firstPage returns the name of an HTML file directly under root, or "".
func firstPage(root string) string {
	matches, _ := filepath.Glob(filepath.Join(root, "*.html"))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			return filepath.Base(m)
		}
	}
	return ""
}

func checkGrid(c *framework.Context, env *testenv.Environment) {
	cfg := env.Config()
	if cfg.Driver != driver.Remote {
		c.SkipWithReason(fmt.Sprintf("driver is %s", cfg.Driver))
	}
	url := cfg.RemoteURL
	if url == "" {
		g, err := env.RemoteServer()
		c.RequireNoError(err, "starting grid")
		url = g.WebDriverURL()
	}
	c.Debug("checking %s/status", url)
	err := fixture.PollStatus(url+"/status", gridStatusTimeout, nil, fixture.StatusReady)
	c.RequireNoError(err, "grid status")
}

func checkScopedSession(c *framework.Context, env *testenv.Environment) {
	err := env.WithDriver(driver.Options{}, func(s driver.Session) error {
		c.Debug("created session %s, browser version %q", s.ID(), s.BrowserVersion())
		if s.ID() == "" {
			return fmt.Errorf("session has no ID")
		}
		return nil
	})
	c.RequireNoError(err, "scoped driver session")
}

func checkSharedSession(c *framework.Context, env *testenv.Environment) {
	first, err := env.DriverInstance(driver.Options{})
	c.RequireNoError(err, "creating shared session")
	second, err := env.DriverInstance(driver.Options{})
	c.RequireNoError(err, "reusing shared session")
	if first != second {
		c.Errorf("shared session was replaced: %s then %s", first.ID(), second.ID())
	}
	c.Defer(env.QuitDriver)
}
