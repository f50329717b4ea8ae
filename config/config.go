// Package config resolves the settings of a test environment once, from call-site overrides,
// environment variables, an optional YAML file, and built-in defaults, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/selenium-go/testenv/driver"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Setting keys. Each key is bound to the environment variable listed in envNames.
const (
	KeyDriver            = "driver"
	KeyRemoteBrowser     = "remote_browser"
	KeyRemoteURL         = "remote_url"
	KeyChromeBinary      = "chrome_binary"
	KeyFirefoxBinary     = "firefox_binary"
	KeyEdgeBinary        = "edge_binary"
	KeyHeadless          = "headless"
	KeyDisableBuildCheck = "disable_build_check"
	KeyTestTarget        = "test_target"
	KeyDownloadServer    = "download_server"
	KeyServerJar         = "server_jar"
	KeyGridMode          = "grid_mode"
	KeyDebug             = "debug"
	KeyGridPort          = "grid_port"
)

// GridModeJar runs the grid from a server jar; GridModeDocker runs it in a container.
const (
	GridModeJar    = "jar"
	GridModeDocker = "docker"
)

var envNames = map[string]string{
	KeyDriver:            "WD_SPEC_DRIVER",
	KeyRemoteBrowser:     "WD_REMOTE_BROWSER",
	KeyRemoteURL:         "WD_REMOTE_URL",
	KeyChromeBinary:      "CHROME_BINARY",
	KeyFirefoxBinary:     "FIREFOX_BINARY",
	KeyEdgeBinary:        "EDGE_BINARY",
	KeyHeadless:          "HEADLESS",
	KeyDisableBuildCheck: "DISABLE_BUILD_CHECK",
	KeyTestTarget:        "TEST_TARGET",
	KeyDownloadServer:    "DOWNLOAD_SERVER",
	KeyServerJar:         "SELENIUM_SERVER_JAR",
	KeyGridMode:          "WD_GRID_MODE",
	KeyDebug:             "WD_DEBUG",
	KeyGridPort:          "WD_GRID_PORT",
}

// EnvName returns the environment variable bound to a setting key, or "" for unknown keys.
func EnvName(key string) string {
	return envNames[key]
}

// Config is the resolved configuration of a test environment.
type Config struct {
	Driver        driver.Kind `mapstructure:"driver" validate:"required,oneof=chrome edge firefox ie safari safari_preview remote playwright" yaml:"driver"`
	RemoteBrowser driver.Kind `mapstructure:"remote_browser" validate:"required,oneof=chrome edge firefox ie safari safari_preview" yaml:"remote_browser"`
	RemoteURL     string      `mapstructure:"remote_url" validate:"omitempty,url" yaml:"remote_url,omitempty"`

	// Binary overrides distinguish "not configured" from "configured as empty".
	ChromeBinary  ldvalue.OptionalString `mapstructure:"-" yaml:"-"`
	FirefoxBinary ldvalue.OptionalString `mapstructure:"-" yaml:"-"`
	EdgeBinary    ldvalue.OptionalString `mapstructure:"-" yaml:"-"`

	Headless          bool   `mapstructure:"-" yaml:"headless"`
	DisableBuildCheck bool   `mapstructure:"-" yaml:"disable_build_check"`
	DownloadServer    bool   `mapstructure:"-" yaml:"download_server"`
	Debug             bool   `mapstructure:"-" yaml:"debug"`
	TestTarget        string `mapstructure:"test_target" yaml:"test_target,omitempty"`
	ServerJar         string `mapstructure:"server_jar" yaml:"server_jar,omitempty"`
	GridMode          string `mapstructure:"grid_mode" validate:"oneof=jar docker" yaml:"grid_mode"`

	// GridPort is the first port a jar grid tries. Undefined means the fixture default.
	GridPort ldvalue.OptionalInt `mapstructure:"-" yaml:"-"`
}

// Browser returns the browser under test: the remote browser for relay drivers, and the driver
// itself otherwise.
func (c *Config) Browser() driver.Kind {
	if c.Driver.IsBrowser() {
		return c.Driver
	}
	return c.RemoteBrowser
}

// BuildSettings returns the options-builder inputs derived from this configuration.
func (c *Config) BuildSettings() driver.BuildSettings {
	return driver.BuildSettings{
		Headless: c.Headless,
		Debug:    c.Debug,
		Binaries: map[driver.Kind]ldvalue.OptionalString{
			driver.Chrome:  c.ChromeBinary,
			driver.Firefox: c.FirefoxBinary,
			driver.Edge:    c.EdgeBinary,
		},
	}
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. A missing file is an error only if it was named
	// explicitly.
	ConfigFile string

	// Overrides are call-site values keyed by setting key. They take precedence over everything
	// else, including the test target.
	Overrides map[string]interface{}
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setupViper(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	for key, value := range opts.Overrides {
		if _, ok := envNames[key]; !ok {
			return nil, fmt.Errorf("unknown setting %q", key)
		}
		v.Set(key, value)
	}

	if target := v.GetString(KeyTestTarget); target != "" {
		t, err := ParseTestTarget(target)
		if err != nil {
			return nil, err
		}
		if _, ok := opts.Overrides[KeyDriver]; !ok {
			v.Set(KeyDriver, t.Driver)
		}
		if _, ok := opts.Overrides[KeyRemoteBrowser]; !ok && t.RemoteBrowser != "" {
			v.Set(KeyRemoteBrowser, t.RemoteBrowser)
		}
	}

	var cfg Config
	var err error
	if err = v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Driver = driver.Kind(normalizeKind(string(cfg.Driver)))
	cfg.RemoteBrowser = driver.Kind(normalizeKind(string(cfg.RemoteBrowser)))
	cfg.GridMode = strings.ToLower(strings.TrimSpace(cfg.GridMode))
	cfg.ChromeBinary = optionalString(v, KeyChromeBinary)
	cfg.FirefoxBinary = optionalString(v, KeyFirefoxBinary)
	cfg.EdgeBinary = optionalString(v, KeyEdgeBinary)
	cfg.Headless = flagValue(v, KeyHeadless)
	cfg.DisableBuildCheck = flagValue(v, KeyDisableBuildCheck)
	cfg.DownloadServer = flagValue(v, KeyDownloadServer)
	cfg.Debug = flagValue(v, KeyDebug)
	if cfg.GridPort, err = optionalPort(v, KeyGridPort); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// FromEnvironment is Load with no config file and no overrides.
func FromEnvironment() (*Config, error) {
	return Load(LoadOptions{})
}

// Validate checks a configuration.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: invalid value %q (%s)", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}

func setupViper(v *viper.Viper) {
	v.AllowEmptyEnv(true)
	for key, env := range envNames {
		_ = v.BindEnv(key, env)
	}
	v.SetDefault(KeyDriver, string(driver.Chrome))
	v.SetDefault(KeyRemoteBrowser, string(driver.Chrome))
	v.SetDefault(KeyGridMode, GridModeJar)
}

func normalizeKind(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

// optionalString is defined whenever the key was set anywhere, even to an empty string.
func optionalString(v *viper.Viper, key string) ldvalue.OptionalString {
	if !v.IsSet(key) {
		return ldvalue.OptionalString{}
	}
	return ldvalue.NewOptionalString(v.GetString(key))
}

// flagValue treats any value other than empty, "0", "false", or "no" as enabled.
func flagValue(v *viper.Viper, key string) bool {
	if !v.IsSet(key) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v.GetString(key))) {
	case "", "0", "false", "no":
		return false
	}
	return true
}

func optionalPort(v *viper.Viper, key string) (ldvalue.OptionalInt, error) {
	if !v.IsSet(key) || strings.TrimSpace(v.GetString(key)) == "" {
		return ldvalue.OptionalInt{}, nil
	}
	port, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || port < 1 || port > 65535 {
		return ldvalue.OptionalInt{}, fmt.Errorf("%s: invalid port %q", key, v.GetString(key))
	}
	return ldvalue.NewOptionalInt(port), nil
}
