package fixture

import (
	"bytes"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/selenium-go/testenv/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("requires a POSIX shell")
	}
}

func TestCommandBuilderQuotesArguments(t *testing.T) {
	var cb commandBuilder
	cb.add("java", "-jar", "/path with space/server.jar")
	assert.Equal(t, `java -jar '/path with space/server.jar'`, cb.String())
}

func TestStartProcessLogsQuotedCommand(t *testing.T) {
	requireShell(t)
	logger := &logging.CapturingLogger{}
	var out bytes.Buffer
	p, err := StartProcess(ProcessConfig{
		Path:   "sh",
		Args:   []string{"-c", "echo $GREETING"},
		Env:    []string{"GREETING=hello"},
		Output: &out,
		Logger: logger,
	})
	require.NoError(t, err)

	require.Eventually(t, p.Exited, time.Second*5, time.Millisecond*10)
	assert.Equal(t, "hello\n", out.String())
	require.NotEmpty(t, logger.Output())
	assert.Equal(t, `Starting process: sh -c 'echo $GREETING'`, logger.Output()[0].Message)
	assert.NoError(t, p.Stop())
}

func TestStopKillsProcessTree(t *testing.T) {
	requireShell(t)
	p, err := StartProcess(ProcessConfig{Path: "sh", Args: []string{"-c", "sleep 30 & sleep 30; wait"}})
	require.NoError(t, err)
	assert.False(t, p.Exited())

	require.NoError(t, p.Stop())
	assert.True(t, p.Exited())
	assert.NoError(t, p.Stop())
}

func TestStartProcessMissingBinary(t *testing.T) {
	_, err := StartProcess(ProcessConfig{Path: "/definitely/not/here"})
	assert.Error(t, err)
}
