package main

import (
	"fmt"
	"os"

	"github.com/selenium-go/testenv/config"
	"github.com/selenium-go/testenv/framework"
	"github.com/selenium-go/testenv/logging"
	"github.com/selenium-go/testenv/testenv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type commandParams struct {
	configFile  string
	driver      string
	browser     string
	remoteURL   string
	headless    bool
	debug       bool
	verbose     bool
	filters     framework.RegexFilters
	debugOutput bool
	debugAll    bool
	format      string
	metricsAddr string
}

// overrideFlags maps command-line flags to the setting keys they override.
var overrideFlags = []struct{ flag, key string }{
	{"driver", config.KeyDriver},
	{"browser", config.KeyRemoteBrowser},
	{"remote-url", config.KeyRemoteURL},
	{"headless", config.KeyHeadless},
	{"debug", config.KeyDebug},
}

func (c *commandParams) addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "YAML config file")
	fs.StringVar(&c.driver, "driver", "", "driver to use (overrides "+config.EnvName(config.KeyDriver)+")")
	fs.StringVar(&c.browser, "browser", "", "browser for the remote and playwright drivers (overrides "+
		config.EnvName(config.KeyRemoteBrowser)+")")
	fs.StringVar(&c.remoteURL, "remote-url", "", "WebDriver URL of an existing grid (overrides "+
		config.EnvName(config.KeyRemoteURL)+")")
	fs.BoolVar(&c.headless, "headless", false, "run browsers headless")
	fs.BoolVar(&c.debug, "debug", false, "enable driver debug logging")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log environment activity to stdout")
}

// overrides returns the settings of every override flag given explicitly on the command line.
func (c *commandParams) overrides(fs *pflag.FlagSet) map[string]interface{} {
	values := map[string]interface{}{
		config.KeyDriver:        c.driver,
		config.KeyRemoteBrowser: c.browser,
		config.KeyRemoteURL:     c.remoteURL,
		config.KeyHeadless:      c.headless,
		config.KeyDebug:         c.debug,
	}
	ret := make(map[string]interface{})
	for _, o := range overrideFlags {
		if fs.Changed(o.flag) {
			ret[o.key] = values[o.key]
		}
	}
	return ret
}

func (c *commandParams) newEnvironment(cmd *cobra.Command) (*testenv.Environment, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: c.configFile,
		Overrides:  c.overrides(cmd.Flags()),
	})
	if err != nil {
		return nil, err
	}
	logger := logging.NullLogger()
	if c.verbose {
		logger = logging.NewConsoleLogger(os.Stdout, "")
	}
	env, err := testenv.New(testenv.Options{Config: cfg, Output: cmd.OutOrStdout(), Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("test environment error: %w", err)
	}
	return env, nil
}

func (c *commandParams) testLogger(cmd *cobra.Command) framework.TestLogger {
	return &framework.ConsoleTestLogger{
		DebugOutputOnFailure: c.debugOutput || c.debugAll,
		DebugOutputOnSuccess: c.debugAll,
		Output:               cmd.OutOrStdout(),
	}
}
