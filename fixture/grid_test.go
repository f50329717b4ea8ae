package fixture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridServerDefaults(t *testing.T) {
	g, err := NewGridServer(GridServerConfig{Jar: "/tmp/server.jar"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/server.jar", g.Jar())
	assert.Equal(t, "java", g.config.Java)
	assert.Equal(t, DefaultGridPort, g.config.Port)
	assert.Equal(t, DefaultGridTimeout, g.config.Timeout)
}

func TestNewGridServerRequiresJar(t *testing.T) {
	_, err := NewGridServer(GridServerConfig{})
	assert.Error(t, err)
}

func TestGridServerCommandArgs(t *testing.T) {
	g, err := NewGridServer(GridServerConfig{Jar: "/tmp/server.jar"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-jar", "/tmp/server.jar", "standalone", "--port", "4450"}, g.commandArgs(4450))

	g.config.Debug = true
	assert.Equal(t,
		[]string{"-jar", "/tmp/server.jar", "standalone", "--port", "4450", "--log-level", "FINE"},
		g.commandArgs(4450))
}

func TestGridServerStartFailure(t *testing.T) {
	g, err := NewGridServer(GridServerConfig{Jar: "/tmp/server.jar"})
	require.NoError(t, err)
	launchErr := errors.New("no java")
	var launched ProcessConfig
	g.start = func(c ProcessConfig) (*Process, error) {
		launched = c
		return nil, launchErr
	}

	_, err = g.Start()
	assert.Equal(t, launchErr, err)
	assert.Equal(t, "java", launched.Path)
	assert.Equal(t, "", g.WebDriverURL())
}

func TestGridServerStopWithoutStartIsNoOp(t *testing.T) {
	g, err := NewGridServer(GridServerConfig{Jar: "/tmp/server.jar"})
	require.NoError(t, err)
	assert.NoError(t, g.Stop())
	assert.NoError(t, g.Stop())
}

func TestContainerImage(t *testing.T) {
	assert.Equal(t, "selenium/standalone-chrome:latest", ContainerImage("chrome", "latest"))
	assert.Equal(t, "selenium/standalone-edge:4.25", ContainerImage("Edge", "4.25"))

	g, err := NewContainerGrid(ContainerGridConfig{Browser: "firefox"})
	require.NoError(t, err)
	assert.Equal(t, "selenium/standalone-firefox:latest", g.Image())
	assert.Equal(t, "", g.WebDriverURL())
	assert.NoError(t, g.Stop())
}

func TestNewContainerGridRequiresBrowser(t *testing.T) {
	_, err := NewContainerGrid(ContainerGridConfig{})
	assert.Error(t, err)
}
