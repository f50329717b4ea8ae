// Package testenv is the entry point for browser tests. An Environment resolves the
// configuration once, owns the shared driver session, and starts fixture servers on first use.
//
// An Environment is meant to be used by one test process at a time. The fixture accessors may
// be called from any goroutine, but the driver methods follow the single-owner rules of
// driver.Manager.
package testenv

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/selenium-go/testenv/config"
	"github.com/selenium-go/testenv/driver"
	"github.com/selenium-go/testenv/fixture"
	"github.com/selenium-go/testenv/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// AssetDir is the directory of test pages, relative to the repository root.
var AssetDir = filepath.Join("common", "src", "web")

// Options contains the optional settings of New.
type Options struct {
	// Config defaults to config.FromEnvironment().
	Config *config.Config

	// Root is the repository root. Defaults to FindRoot of the working directory.
	Root string

	// Factory overrides the driver backend selected by the configuration.
	Factory driver.Factory

	// Output receives progress messages and the console output of launched servers. Defaults to
	// os.Stdout.
	Output io.Writer

	Logger logging.Logger
}

// Environment is the test environment of one test run.
type Environment struct {
	config   *config.Config
	root     string
	output   io.Writer
	logger   logging.Logger
	registry *prometheus.Registry
	manager  *driver.Manager
	closer   io.Closer

	newAppServer func() (*fixture.AssetServer, error)
	newGrid      func() (fixture.Grid, error)

	lock         sync.Mutex
	appServer    *fixture.AssetServer
	remoteServer fixture.Grid
	remoteJar    string
}

// New creates an Environment. No driver session or server is started until it is needed.
func New(opts Options) (*Environment, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.FromEnvironment(); err != nil {
			return nil, err
		}
	}
	root := opts.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = FindRoot(wd)
	}
	e := &Environment{
		config:   cfg,
		root:     root,
		output:   opts.Output,
		logger:   opts.Logger,
		registry: prometheus.NewRegistry(),
	}
	if e.output == nil {
		e.output = os.Stdout
	}
	if e.logger == nil {
		e.logger = logging.NullLogger()
	}
	e.newAppServer = e.createAppServer
	e.newGrid = e.createGrid

	factory := opts.Factory
	if factory == nil {
		factory, e.closer = e.createFactory()
	}
	e.manager = driver.NewManager(driver.ManagerConfig{
		Driver:  cfg.Driver,
		Browser: cfg.Browser(),
		Factory: factory,
		Builder: driver.TableBuilder{Settings: cfg.BuildSettings()},
		Logger:  logging.LoggerWithPrefix(e.logger, "[driver] "),
		Metrics: driver.NewMetrics(e.registry),
	})
	return e, nil
}

// FindRoot returns the nearest ancestor of dir, including dir itself, that contains AssetDir.
// If there is none, dir is returned.
func FindRoot(dir string) string {
	for d := dir; ; {
		if info, err := os.Stat(filepath.Join(d, AssetDir)); err == nil && info.IsDir() {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}

func (e *Environment) createFactory() (driver.Factory, io.Closer) {
	if e.config.Driver == driver.Playwright {
		f := driver.NewPlaywrightFactory(driver.PlaywrightConfig{
			Browser:  e.config.Browser(),
			Headless: e.config.Headless,
			Install:  e.config.DownloadServer,
			Output:   e.output,
			Logger:   logging.LoggerWithPrefix(e.logger, "[playwright] "),
		})
		return f, closerFunc(f.Close)
	}
	return driver.NewSeleniumFactory(driver.SeleniumConfig{
		RemoteBrowser:     e.config.RemoteBrowser,
		RemoteURL:         e.remoteWebDriverURL,
		DisableBuildCheck: e.config.DisableBuildCheck,
		Debug:             e.config.Debug,
		ServiceOutput:     e.debugOutput(),
		Logger:            logging.LoggerWithPrefix(e.logger, "[selenium] "),
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (e *Environment) debugOutput() io.Writer {
	if e.config.Debug {
		return e.output
	}
	return nil
}

// Config returns the resolved configuration.
func (e *Environment) Config() *config.Config { return e.config }

// Root returns the repository root.
func (e *Environment) Root() string { return e.root }

// Driver returns the configured driver kind.
func (e *Environment) Driver() driver.Kind { return e.config.Driver }

// Browser returns the browser under test.
func (e *Environment) Browser() driver.Kind { return e.config.Browser() }

// Manager returns the driver lifecycle manager.
func (e *Environment) Manager() *driver.Manager { return e.manager }

// MetricsHandler serves the driver lifecycle metrics of this environment.
func (e *Environment) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// DriverInstance returns the shared driver session, creating it if necessary.
func (e *Environment) DriverInstance(opts driver.Options) (driver.Session, error) {
	return e.manager.Acquire(opts)
}

// CreateDriver replaces the shared driver session with a new one.
func (e *Environment) CreateDriver(opts driver.Options) (driver.Session, error) {
	return e.manager.CreateDriver(opts)
}

// ResetDriver quits the shared driver session, waits for delay, and creates a new one.
func (e *Environment) ResetDriver(delay time.Duration, opts driver.Options) (driver.Session, error) {
	return e.manager.Reset(delay, opts)
}

// QuitDriver quits the shared driver session, if any.
func (e *Environment) QuitDriver() {
	e.manager.Release()
}

// WithDriver runs body with a session of its own, which is quit when body returns.
func (e *Environment) WithDriver(opts driver.Options, body func(driver.Session) error) error {
	return e.manager.ScopedUse(opts, body)
}

// AppServer returns the test page server, starting it on first use.
func (e *Environment) AppServer() (*fixture.AssetServer, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.appServer != nil {
		return e.appServer, nil
	}
	s, err := e.newAppServer()
	if err != nil {
		return nil, err
	}
	if _, err := s.Start(); err != nil {
		return nil, err
	}
	e.appServer = s
	return s, nil
}

func (e *Environment) createAppServer() (*fixture.AssetServer, error) {
	return fixture.NewAssetServer(filepath.Join(e.root, AssetDir), fixture.AssetServerConfig{
		Logger: logging.LoggerWithPrefix(e.logger, "[app] "),
	})
}

// URLFor returns the URL of a test page.
func (e *Environment) URLFor(name string) (string, error) {
	s, err := e.AppServer()
	if err != nil {
		return "", err
	}
	return s.WhereIs(name)
}

// RemoteServer returns the grid used by the remote driver, starting it on first use.
func (e *Environment) RemoteServer() (fixture.Grid, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.remoteServerLocked()
}

func (e *Environment) remoteServerLocked() (fixture.Grid, error) {
	if e.remoteServer != nil {
		return e.remoteServer, nil
	}
	g, err := e.newGrid()
	if err != nil {
		return nil, err
	}
	if _, err := g.Start(); err != nil {
		return nil, err
	}
	e.remoteServer = g
	return g, nil
}

// ResetRemoteServer stops the grid, if it is running, and starts a new one.
func (e *Environment) ResetRemoteServer() (fixture.Grid, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.remoteServer != nil {
		if err := e.remoteServer.Stop(); err != nil {
			e.logger.Printf("Ignoring error while stopping grid: %s", err)
		}
		e.remoteServer = nil
	}
	return e.remoteServerLocked()
}

// RemoteServerStarted reports whether the grid has been started.
func (e *Environment) RemoteServerStarted() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.remoteServer != nil
}

// RemoteServerJar returns the Selenium server jar for the grid. An explicitly configured jar is
// used as-is; otherwise the jar is looked up locally or downloaded.
func (e *Environment) RemoteServerJar() (string, error) {
	if e.config.ServerJar != "" {
		return e.config.ServerJar, nil
	}
	if e.remoteJar != "" {
		return e.remoteJar, nil
	}
	jar, err := fixture.ResolveServerJar(fixture.JarLocation{
		RepoRoot:      e.root,
		ForceDownload: e.config.DownloadServer,
		Logger:        logging.LoggerWithPrefix(e.logger, "[grid] "),
	})
	if err != nil {
		return "", err
	}
	e.remoteJar = jar
	return jar, nil
}

func (e *Environment) createGrid() (fixture.Grid, error) {
	logger := logging.LoggerWithPrefix(e.logger, "[grid] ")
	switch e.config.GridMode {
	case config.GridModeDocker:
		return fixture.NewContainerGrid(fixture.ContainerGridConfig{
			Browser: string(e.config.RemoteBrowser),
			Logger:  logger,
		})
	default:
		jar, err := e.RemoteServerJar()
		if err != nil {
			return nil, err
		}
		return fixture.NewGridServer(fixture.GridServerConfig{
			Jar:    jar,
			Port:   e.config.GridPort.OrElse(0),
			Debug:  e.config.Debug,
			Output: e.output,
			Logger: logger,
		})
	}
}

func (e *Environment) remoteWebDriverURL() (string, error) {
	if e.config.RemoteURL != "" {
		return e.config.RemoteURL, nil
	}
	g, err := e.RemoteServer()
	if err != nil {
		return "", err
	}
	return g.WebDriverURL(), nil
}

// Quit quits the shared driver session and stops every server. The Environment may be used
// again afterward; servers are restarted on demand.
func (e *Environment) Quit() error {
	e.manager.Release()

	e.lock.Lock()
	appServer, remoteServer := e.appServer, e.remoteServer
	e.appServer, e.remoteServer = nil, nil
	e.lock.Unlock()

	var g errgroup.Group
	if appServer != nil {
		g.Go(func() error { return wrapStop("app server", appServer.Stop()) })
	}
	if remoteServer != nil {
		g.Go(func() error { return wrapStop("grid", remoteServer.Stop()) })
	}
	err := g.Wait()
	if e.closer != nil {
		err = errors.Join(err, e.closer.Close())
	}
	return err
}

func wrapStop(what string, err error) error {
	if err != nil {
		return fmt.Errorf("could not stop %s: %w", what, err)
	}
	return nil
}
