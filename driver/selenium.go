package driver

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/selenium-go/testenv/fixture"
	"github.com/selenium-go/testenv/logging"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
)

const (
	defaultServiceTimeout = time.Second * 20
	disableBuildCheckArg  = "--disable-build-check"
	safariPreviewName     = "Safari Technology Preview"
)

// service describes the local driver binary that relays commands to one browser.
type service struct {
	binary     string
	portArgs   func(port int) []string
	buildCheck bool
}

func dashPort(port int) []string  { return []string{fmt.Sprintf("--port=%d", port)} }
func spacePort(port int) []string { return []string{"--port", fmt.Sprint(port)} }
func slashPort(port int) []string { return []string{fmt.Sprintf("/port=%d", port)} }

var services = map[Kind]service{
	Chrome:        {binary: "chromedriver", portArgs: dashPort, buildCheck: true},
	Edge:          {binary: "msedgedriver", portArgs: dashPort, buildCheck: true},
	Firefox:       {binary: "geckodriver", portArgs: spacePort},
	IE:            {binary: "IEDriverServer", portArgs: slashPort},
	Safari:        {binary: "/usr/bin/safaridriver", portArgs: spacePort},
	SafariPreview: {binary: "/Applications/Safari Technology Preview.app/Contents/MacOS/safaridriver", portArgs: spacePort},
}

// SeleniumConfig contains the settings of a SeleniumFactory.
type SeleniumConfig struct {
	// RemoteBrowser is the browser requested from the grid by the Remote kind.
	RemoteBrowser Kind

	// RemoteURL returns the WebDriver URL used by the Remote kind. It is only called when a
	// remote session is created, so it may start a grid lazily.
	RemoteURL func() (string, error)

	// DriverPaths overrides the driver binary for a browser kind.
	DriverPaths map[Kind]string

	// DisableBuildCheck passes --disable-build-check to chromedriver and msedgedriver.
	DisableBuildCheck bool

	// ServiceTimeout bounds how long a driver binary may take to answer its status endpoint.
	ServiceTimeout time.Duration

	// ServiceOutput receives the console output of driver binaries. Nil discards it.
	ServiceOutput io.Writer

	Debug  bool
	Logger logging.Logger
}

// SeleniumFactory creates WebDriver sessions. Local kinds launch their driver binary on a free
// port for each session; the Remote kind connects to a grid.
type SeleniumFactory struct {
	config       SeleniumConfig
	newRemote    func(selenium.Capabilities, string) (selenium.WebDriver, error)
	startService func(fixture.ProcessConfig) (*fixture.Process, error)
	waitService  func(url string, timeout time.Duration) error
}

// NewSeleniumFactory creates a SeleniumFactory.
func NewSeleniumFactory(c SeleniumConfig) *SeleniumFactory {
	if c.RemoteBrowser == "" {
		c.RemoteBrowser = Chrome
	}
	if c.ServiceTimeout == 0 {
		c.ServiceTimeout = defaultServiceTimeout
	}
	if c.Logger == nil {
		c.Logger = logging.NullLogger()
	}
	selenium.SetDebug(c.Debug)
	return &SeleniumFactory{
		config:       c,
		newRemote:    selenium.NewRemote,
		startService: fixture.StartProcess,
		waitService: func(url string, timeout time.Duration) error {
			return fixture.PollStatus(url+"/status", timeout, nil, fixture.StatusReady)
		},
	}
}

// NewSession implements Factory.
func (f *SeleniumFactory) NewSession(kind Kind, opts Options) (Session, error) {
	if kind == Remote {
		return f.newRemoteSession(opts)
	}
	return f.newLocalSession(kind, opts)
}

func (f *SeleniumFactory) newRemoteSession(opts Options) (Session, error) {
	if f.config.RemoteURL == nil {
		return nil, errors.New("no remote WebDriver URL configured")
	}
	url, err := f.config.RemoteURL()
	if err != nil {
		return nil, fmt.Errorf("could not determine remote WebDriver URL: %w", err)
	}
	caps, err := Capabilities(f.config.RemoteBrowser, opts)
	if err != nil {
		return nil, err
	}
	f.config.Logger.Printf("Requesting %s session from %s", f.config.RemoteBrowser, url)
	wd, err := f.newRemote(caps, url)
	if err != nil {
		return nil, err
	}
	return &seleniumSession{wd: wd}, nil
}

func (f *SeleniumFactory) newLocalSession(kind Kind, opts Options) (Session, error) {
	svc, ok := services[kind]
	if !ok {
		return nil, fmt.Errorf("no local driver service for %s", kind)
	}
	caps, err := Capabilities(kind, opts)
	if err != nil {
		return nil, err
	}

	port, err := fixture.FreePort()
	if err != nil {
		return nil, err
	}
	proc, err := f.startService(fixture.ProcessConfig{
		Path:   f.driverPath(kind, svc),
		Args:   f.serviceArgs(svc, port),
		Output: f.config.ServiceOutput,
		Logger: f.config.Logger,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	if err := f.waitService(url, f.config.ServiceTimeout); err != nil {
		stopService(proc)
		return nil, fmt.Errorf("%s did not start: %w", svc.binary, err)
	}
	wd, err := f.newRemote(caps, url)
	if err != nil {
		stopService(proc)
		return nil, err
	}
	return &seleniumSession{wd: wd, service: proc}, nil
}

func (f *SeleniumFactory) driverPath(kind Kind, svc service) string {
	if p := f.config.DriverPaths[kind]; p != "" {
		return p
	}
	return svc.binary
}

func (f *SeleniumFactory) serviceArgs(svc service, port int) []string {
	args := svc.portArgs(port)
	if svc.buildCheck && f.config.DisableBuildCheck {
		args = append(args, disableBuildCheckArg)
	}
	return args
}

func stopService(p *fixture.Process) {
	if p != nil {
		_ = p.Stop()
	}
}

// Capabilities converts options for a browser kind into the capabilities of a new session
// request.
func Capabilities(browser Kind, opts Options) (selenium.Capabilities, error) {
	switch browser {
	case Chrome:
		caps := selenium.Capabilities{"browserName": "chrome"}
		caps.AddChrome(chromiumCapabilities(opts))
		return caps, nil
	case Edge:
		caps := selenium.Capabilities{"browserName": "MicrosoftEdge"}
		caps["ms:edgeOptions"] = chromiumCapabilities(opts)
		return caps, nil
	case Firefox:
		caps := selenium.Capabilities{"browserName": "firefox"}
		fc := firefox.Capabilities{Binary: opts.Binary, Args: opts.Args, Prefs: opts.Prefs}
		if opts.LogLevel != "" {
			fc.Log = &firefox.Log{Level: firefox.LogLevel(opts.LogLevel)}
		}
		caps.AddFirefox(fc)
		return caps, nil
	case IE:
		ieOptions := map[string]interface{}{"requireWindowFocus": opts.RequireWindowFocus}
		if len(opts.Args) > 0 {
			ieOptions["ie.browserCommandLineSwitches"] = strings.Join(opts.Args, " ")
		}
		return selenium.Capabilities{"browserName": "internet explorer", "se:ieOptions": ieOptions}, nil
	case Safari, SafariPreview:
		name := "safari"
		if opts.TechnologyPreview {
			name = safariPreviewName
		}
		return selenium.Capabilities{"browserName": name}, nil
	}
	return nil, fmt.Errorf("WebDriver sessions are not supported for %q", browser)
}

func chromiumCapabilities(opts Options) chrome.Capabilities {
	return chrome.Capabilities{Path: opts.Binary, Args: opts.Args, Prefs: opts.Prefs, W3C: true}
}

type seleniumSession struct {
	wd      selenium.WebDriver
	service *fixture.Process
}

func (s *seleniumSession) ID() string { return s.wd.SessionID() }

func (s *seleniumSession) BrowserVersion() string {
	caps, err := s.wd.Capabilities()
	if err != nil {
		return ""
	}
	for _, key := range []string{"browserVersion", "version"} {
		if v, ok := caps[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (s *seleniumSession) Quit() error {
	err := s.wd.Quit()
	if s.service != nil {
		err = errors.Join(err, s.service.Stop())
	}
	return err
}

// WebDriverOf returns the WebDriver client behind a session created by a SeleniumFactory.
func WebDriverOf(s Session) (selenium.WebDriver, bool) {
	ss, ok := s.(*seleniumSession)
	if !ok {
		return nil, false
	}
	return ss.wd, true
}
