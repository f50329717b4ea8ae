package main

import (
	"bytes"
	"testing"

	"github.com/selenium-go/testenv/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverridesIncludeOnlyExplicitFlags(t *testing.T) {
	var params commandParams
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	params.addGlobalFlags(fs)
	require.NoError(t, fs.Parse([]string{"--driver", "firefox", "--headless"}))

	assert.Equal(t, map[string]interface{}{
		config.KeyDriver:   "firefox",
		config.KeyHeadless: true,
	}, params.overrides(fs))
}

func TestExplicitFalseFlagIsAnOverride(t *testing.T) {
	var params commandParams
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	params.addGlobalFlags(fs)
	require.NoError(t, fs.Parse([]string{"--debug=false"}))

	assert.Equal(t, map[string]interface{}{config.KeyDebug: false}, params.overrides(fs))
}

func TestInvalidDriverIsReportedBeforeAnythingStarts(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"env", "--driver", "netscape"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Equal(t, "", out.String())
}

func TestCheckRejectsInvalidFilter(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check", "--run", "("})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex")
}
