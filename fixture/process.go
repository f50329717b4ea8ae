package fixture

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/selenium-go/testenv/logging"

	"github.com/alessio/shellescape"
	"github.com/shirou/gopsutil/v3/process"
)

const processStopTimeout = time.Second * 10

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// ProcessConfig describes a child process to launch.
type ProcessConfig struct {
	Path string
	Args []string

	// Env entries are appended to the inherited environment.
	Env []string

	// Output receives the child's stdout and stderr. Nil discards them.
	Output io.Writer

	Logger logging.Logger
}

// Process is a running child process, such as a browser driver or a grid server.
type Process struct {
	cmd      *exec.Cmd
	logger   logging.Logger
	exited   chan struct{}
	waitErr  error
	stopOnce sync.Once
	stopErr  error
}

// StartProcess launches the process described by c and returns once it has been started. It does
// not wait for the process to become ready; use WaitForListener or PollStatus for that.
func StartProcess(c ProcessConfig) (*Process, error) {
	logger := c.Logger
	if logger == nil {
		logger = logging.NullLogger()
	}
	var cb commandBuilder
	cb.add(c.Path)
	cb.add(c.Args...)

	cmd := exec.Command(c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	if c.Output != nil {
		cmd.Stdout = c.Output
		cmd.Stderr = c.Output
	}
	logger.Printf("Starting process: %s", cb)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start %s: %w", c.Path, err)
	}

	p := &Process{cmd: cmd, logger: logger, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// PID returns the operating system process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Exited reports whether the process has terminated.
func (p *Process) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// Stop kills the process and every process it spawned, then waits for it to exit. Calling Stop
// more than once returns the result of the first call.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop()
	})
	return p.stopErr
}

func (p *Process) stop() error {
	if p.Exited() {
		return nil
	}
	p.logger.Printf("Stopping process %d", p.PID())
	killDescendants(int32(p.PID()), p.logger)
	if err := p.cmd.Process.Kill(); err != nil && !p.Exited() {
		return fmt.Errorf("could not kill process %d: %w", p.PID(), err)
	}

	deadline := time.NewTimer(processStopTimeout)
	defer deadline.Stop()
	select {
	case <-p.exited:
		var exitErr *exec.ExitError
		if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
			return p.waitErr
		}
		return nil
	case <-deadline.C:
		return fmt.Errorf("process %d did not exit within %s", p.PID(), processStopTimeout)
	}
}

// killDescendants kills the children of pid, deepest first. Driver binaries and the grid server
// start browsers of their own, which would otherwise outlive them.
func killDescendants(pid int32, logger logging.Logger) {
	parent, err := process.NewProcess(pid)
	if err != nil {
		return
	}
	children, err := parent.Children()
	if err != nil {
		return
	}
	for _, child := range children {
		killDescendants(child.Pid, logger)
		if err := child.Kill(); err != nil {
			logger.Printf("Could not kill child process %d: %s", child.Pid, err)
		}
	}
}
