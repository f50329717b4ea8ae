package framework

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/selenium-go/testenv/logging"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
}

// Context is the state of one running check.
type Context struct {
	env         *environment
	id          TestID
	debugLogger logging.CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	deferred    []func()
}

// Run runs action as the root of a check tree and returns the results of every check started
// with Context.Run. A nil filter runs everything.
func Run(
	filter Filter,
	testLogger TestLogger,
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	defer func() {
		if r := recover(); r != nil {
			if !c.skipped {
				c.failed = true
				var addError error
				if _, ok := r.(*Context); ok {
					if len(c.errors) == 0 {
						addError = errors.New("check failed with no failure message")
					}
				} else {
					addError = fmt.Errorf("unexpected panic in check: %+v\n%s", r, string(debug.Stack()))
				}
				if addError != nil {
					c.errors = append(c.errors, addError)
					c.env.testLogger.TestError(c.id, addError)
				}
			}
		}
		c.runDeferred()
		if len(c.id.Path) == 0 {
			return
		}
		result := TestResult{TestID: c.id, Errors: c.errors, Skipped: c.skipped}
		c.env.results.Tests = append(c.env.results.Tests, result)
		if c.failed {
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
	}()

	action(c)
}

func (c *Context) runDeferred() {
	for i := len(c.deferred) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.failed = true
					err := fmt.Errorf("panic in deferred cleanup: %+v", r)
					c.errors = append(c.errors, err)
					c.env.testLogger.TestError(c.id, err)
				}
			}()
			c.deferred[i]()
		}()
	}
	c.deferred = nil
}

// ID returns the identifier of the current check.
func (c *Context) ID() TestID {
	return c.id
}

// Run starts a nested check, unless the filter excludes it.
func (c *Context) Run(name string, action func(*Context)) {
	id := c.id.Plus(name)

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action)
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.failed, c1.debugLogger.Output())
	}
}

// Defer schedules cleanup to run when the current check ends, whether it passed, failed, or was
// skipped. Cleanups run in reverse order.
func (c *Context) Defer(cleanup func()) {
	c.deferred = append(c.deferred, cleanup)
}

// Errorf records a failure and lets the check continue.
func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, err)
}

// FailNow stops the current check, which is marked as failed.
func (c *Context) FailNow() {
	panic(c)
}

// RequireNoError stops the current check with a failure if err is not nil.
func (c *Context) RequireNoError(err error, what string) {
	if err != nil {
		c.Errorf("%s: %s", what, err)
		c.FailNow()
	}
}

// Skip stops the current check without failing it.
func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

// SkipWithReason is Skip with an explanation for the test log.
func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

// Debug adds a message to the check's debug output, which the TestLogger may print at the end.
func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

// DebugLogger returns a Logger that writes to the check's debug output.
func (c *Context) DebugLogger() logging.Logger {
	return &c.debugLogger
}
