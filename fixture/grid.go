package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/selenium-go/testenv/logging"
)

const (
	// DefaultGridPort is the port a grid server prefers; the first free port at or above it is used.
	DefaultGridPort = 4444

	// DefaultGridTimeout is how long a grid server may take to report that it is ready.
	DefaultGridTimeout = time.Second * 60

	defaultJavaPath = "java"
	debugLogLevel   = "FINE"
)

// Grid is a Server that relays WebDriver sessions to browsers.
type Grid interface {
	Server

	// WebDriverURL returns the URL sessions should be created against. It is only valid while
	// the grid is running.
	WebDriverURL() string
}

// GridServerConfig contains the settings of a GridServer.
type GridServerConfig struct {
	// Jar is the path to the Selenium server jar. Required.
	Jar string

	// Java is the java executable. Defaults to "java".
	Java string

	// Port is the first port to try. Defaults to DefaultGridPort.
	Port int

	// Timeout defaults to DefaultGridTimeout.
	Timeout time.Duration

	// Debug enables the server's verbose log level.
	Debug bool

	// Output receives the server's console output and startup progress. Nil discards them.
	Output io.Writer

	Logger logging.Logger
}

// GridServer runs a standalone Selenium Grid from a jar as a child process.
type GridServer struct {
	config  GridServerConfig
	start   func(ProcessConfig) (*Process, error)
	lock    sync.Mutex
	process *Process
	baseURL string
}

// NewGridServer creates a GridServer. The server is not started.
func NewGridServer(c GridServerConfig) (*GridServer, error) {
	if c.Jar == "" {
		return nil, errors.New("grid server requires a jar")
	}
	if c.Java == "" {
		c.Java = defaultJavaPath
	}
	if c.Port == 0 {
		c.Port = DefaultGridPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultGridTimeout
	}
	if c.Logger == nil {
		c.Logger = logging.NullLogger()
	}
	return &GridServer{config: c, start: StartProcess}, nil
}

// Jar returns the server jar this grid runs.
func (g *GridServer) Jar() string { return g.config.Jar }

// Start launches the grid and waits until its status endpoint reports that it is ready.
func (g *GridServer) Start() (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.process != nil {
		return g.baseURL, nil
	}

	port, err := FreePortAbove(g.config.Port)
	if err != nil {
		return "", err
	}
	p, err := g.start(ProcessConfig{
		Path:   g.config.Java,
		Args:   g.commandArgs(port),
		Output: g.config.Output,
		Logger: g.config.Logger,
	})
	if err != nil {
		return "", err
	}

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	if err := PollStatus(baseURL+"/status", g.config.Timeout, g.config.Output, StatusReady); err != nil {
		_ = p.Stop()
		return "", fmt.Errorf("grid server did not become ready: %w", err)
	}
	g.config.Logger.Printf("Grid server is ready at %s", baseURL)
	g.process = p
	g.baseURL = baseURL
	return baseURL, nil
}

// Stop terminates the grid and any browsers it started.
func (g *GridServer) Stop() error {
	g.lock.Lock()
	p := g.process
	g.process = nil
	g.baseURL = ""
	g.lock.Unlock()
	if p == nil {
		return nil
	}
	return p.Stop()
}

// WebDriverURL implements Grid.
func (g *GridServer) WebDriverURL() string {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.baseURL == "" {
		return ""
	}
	return g.baseURL + "/wd/hub"
}

func (g *GridServer) commandArgs(port int) []string {
	args := []string{"-jar", g.config.Jar, "standalone", "--port", fmt.Sprint(port)}
	if g.config.Debug {
		args = append(args, "--log-level", debugLogLevel)
	}
	return args
}

type webDriverStatus struct {
	Value struct {
		Ready   bool   `json:"ready"`
		Message string `json:"message"`
	} `json:"value"`
}

// StatusReady is a StatusCheck for the W3C WebDriver /status endpoint, served by the grid and by
// every driver binary.
func StatusReady(body []byte) (bool, error) {
	var status webDriverStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return false, fmt.Errorf("malformed status response: %s", string(body))
	}
	return status.Value.Ready, nil
}
