package fixture

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/selenium-go/testenv/logging"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	gridContainerPort    = "4444/tcp"
	defaultContainerTag  = "latest"
	containerStopTimeout = time.Second * 30
)

// ContainerGridConfig contains the settings of a ContainerGrid.
type ContainerGridConfig struct {
	// Browser selects the selenium/standalone-<browser> image. Required.
	Browser string

	// Tag is the image tag. Defaults to "latest".
	Tag string

	// Timeout defaults to DefaultGridTimeout.
	Timeout time.Duration

	Logger logging.Logger
}

// ContainerGrid runs a standalone Selenium Grid with a bundled browser in a container.
type ContainerGrid struct {
	config    ContainerGridConfig
	lock      sync.Mutex
	container testcontainers.Container
	baseURL   string
}

// NewContainerGrid creates a ContainerGrid. The container is not started.
func NewContainerGrid(c ContainerGridConfig) (*ContainerGrid, error) {
	if c.Browser == "" {
		return nil, fmt.Errorf("container grid requires a browser")
	}
	if c.Tag == "" {
		c.Tag = defaultContainerTag
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultGridTimeout
	}
	if c.Logger == nil {
		c.Logger = logging.NullLogger()
	}
	return &ContainerGrid{config: c}, nil
}

// Image returns the container image this grid runs.
func (g *ContainerGrid) Image() string {
	return ContainerImage(g.config.Browser, g.config.Tag)
}

// ContainerImage returns the standalone grid image for a browser kind such as "chrome" or
// "edge". Underscores in kind names become dashes.
func ContainerImage(browser, tag string) string {
	name := strings.ReplaceAll(strings.ToLower(browser), "_", "-")
	return fmt.Sprintf("selenium/standalone-%s:%s", name, tag)
}

// Start launches the container and waits until the grid inside it reports that it is ready.
func (g *ContainerGrid) Start() (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.container != nil {
		return g.baseURL, nil
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        g.Image(),
		ExposedPorts: []string{gridContainerPort},
		WaitingFor: wait.ForHTTP("/status").
			WithPort(gridContainerPort).
			WithResponseMatcher(func(body io.Reader) bool {
				data, err := io.ReadAll(body)
				if err != nil {
					return false
				}
				ready, err := StatusReady(data)
				return err == nil && ready
			}).
			WithStartupTimeout(g.config.Timeout),
	}
	g.config.Logger.Printf("Starting grid container %s", req.Image)
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start grid container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, gridContainerPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", fmt.Errorf("failed to get container port: %w", err)
	}

	g.container = container
	g.baseURL = fmt.Sprintf("http://%s:%s", host, port.Port())
	g.config.Logger.Printf("Grid container is ready at %s", g.baseURL)
	return g.baseURL, nil
}

// Stop terminates the container.
func (g *ContainerGrid) Stop() error {
	g.lock.Lock()
	container := g.container
	g.container = nil
	g.baseURL = ""
	g.lock.Unlock()
	if container == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), containerStopTimeout)
	defer cancel()
	return container.Terminate(ctx)
}

// WebDriverURL implements Grid.
func (g *ContainerGrid) WebDriverURL() string {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.baseURL == "" {
		return ""
	}
	return g.baseURL + "/wd/hub"
}
