package driver

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/selenium-go/testenv/logging"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightConfig contains the settings of a PlaywrightFactory.
type PlaywrightConfig struct {
	// Browser selects the engine: chrome and edge run on Chromium, firefox on Firefox, and the
	// safari kinds on WebKit.
	Browser Kind

	Headless bool

	// Install downloads the Playwright driver and browsers before first use.
	Install bool

	// Output receives the output of the Playwright driver. Nil discards it.
	Output io.Writer

	Logger logging.Logger
}

// PlaywrightFactory creates sessions backed by a Playwright-launched browser. The Playwright
// driver process is started on first use and shared by all sessions until Close.
type PlaywrightFactory struct {
	config  PlaywrightConfig
	lock    sync.Mutex
	pw      *playwright.Playwright
	started bool
	run     func() (*playwright.Playwright, error)
	launch  func(pw *playwright.Playwright, browser Kind, opts playwright.BrowserTypeLaunchOptions) (playwright.Browser, error)
}

// NewPlaywrightFactory creates a PlaywrightFactory.
func NewPlaywrightFactory(c PlaywrightConfig) *PlaywrightFactory {
	if c.Browser == "" {
		c.Browser = Chrome
	}
	if c.Output == nil {
		c.Output = io.Discard
	}
	if c.Logger == nil {
		c.Logger = logging.NullLogger()
	}
	f := &PlaywrightFactory{config: c, launch: launchPlaywrightBrowser}
	f.run = f.runPlaywright
	return f
}

// NewSession implements Factory. Only the Playwright kind is supported.
func (f *PlaywrightFactory) NewSession(kind Kind, opts Options) (Session, error) {
	if kind != Playwright {
		return nil, fmt.Errorf("playwright factory cannot create %s sessions", kind)
	}
	launchOpts, err := PlaywrightLaunchOptions(f.config.Browser, f.config.Headless, opts)
	if err != nil {
		return nil, err
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.started {
		pw, err := f.run()
		if err != nil {
			return nil, err
		}
		f.pw = pw
		f.started = true
	}

	browser, err := f.launch(f.pw, f.config.Browser, launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return &playwrightSession{id: uuid.NewString(), browser: browser}, nil
}

// Close stops the Playwright driver. Sessions must be quit first.
func (f *PlaywrightFactory) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	pw := f.pw
	f.pw = nil
	f.started = false
	if pw == nil {
		return nil
	}
	return pw.Stop()
}

func (f *PlaywrightFactory) runPlaywright() (*playwright.Playwright, error) {
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  f.config.Output,
		Stderr:  f.config.Output,
	}
	if f.config.Install {
		f.config.Logger.Printf("Installing Playwright browsers")
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	return pw, nil
}

func launchPlaywrightBrowser(pw *playwright.Playwright, browser Kind, opts playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	switch browser {
	case Chrome, Edge:
		return pw.Chromium.Launch(opts)
	case Firefox:
		return pw.Firefox.Launch(opts)
	case Safari, SafariPreview:
		return pw.WebKit.Launch(opts)
	}
	return nil, fmt.Errorf("playwright cannot launch %s", browser)
}

// PlaywrightLaunchOptions converts options for a browser kind into Playwright launch options.
// Headless mode is controlled by Playwright itself, so headless arguments are dropped.
func PlaywrightLaunchOptions(browser Kind, headless bool, opts Options) (playwright.BrowserTypeLaunchOptions, error) {
	launchOpts := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(headless)}
	switch browser {
	case Chrome, Firefox, Safari, SafariPreview:
	case Edge:
		launchOpts.Channel = playwright.String("msedge")
	default:
		return launchOpts, fmt.Errorf("playwright cannot launch %s", browser)
	}
	if opts.Binary != "" {
		launchOpts.ExecutablePath = playwright.String(opts.Binary)
	}
	for _, a := range opts.Args {
		if !strings.HasPrefix(a, "--headless") {
			launchOpts.Args = append(launchOpts.Args, a)
		}
	}
	return launchOpts, nil
}

type playwrightSession struct {
	id      string
	browser playwright.Browser
}

func (s *playwrightSession) ID() string { return s.id }

func (s *playwrightSession) BrowserVersion() string { return s.browser.Version() }

func (s *playwrightSession) Quit() error { return s.browser.Close() }

// BrowserOf returns the Playwright browser behind a session created by a PlaywrightFactory.
func BrowserOf(s Session) (playwright.Browser, bool) {
	ps, ok := s.(*playwrightSession)
	if !ok {
		return nil, false
	}
	return ps.browser, true
}
