package testenv

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/selenium-go/testenv/driver"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Info describes the environment tests are running in.
type Info struct {
	Browser  string `yaml:"browser"`
	Driver   string `yaml:"driver"`
	Version  string `yaml:"version"`
	Platform string `yaml:"platform"`
	CI       string `yaml:"ci"`
	Go       string `yaml:"go"`
}

func (i Info) rows() [][]string {
	return [][]string{
		{"browser", i.Browser},
		{"driver", i.Driver},
		{"version", i.Version},
		{"platform", i.Platform},
		{"ci", i.CI},
		{"go", i.Go},
	}
}

// Output formats for PrintEnv.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

var ciVariables = []struct{ env, name string }{
	{"GITHUB_ACTIONS", "github"},
	{"TRAVIS", "travis"},
	{"JENKINS_URL", "jenkins"},
	{"CIRCLECI", "circleci"},
	{"APPVEYOR", "appveyor"},
	{"CI", "unknown"},
}

// DetectCI returns the name of the CI system the process runs under, or "" if none is detected.
func DetectCI() string {
	for _, v := range ciVariables {
		if os.Getenv(v.env) != "" {
			return v.name
		}
	}
	return ""
}

// Info reports the environment. The browser version is read from the shared driver session,
// which is created if necessary.
func (e *Environment) Info() (Info, error) {
	s, err := e.DriverInstance(driver.Options{})
	if err != nil {
		return Info{}, err
	}
	return Info{
		Browser:  e.Browser().String(),
		Driver:   e.Driver().String(),
		Version:  s.BrowserVersion(),
		Platform: runtime.GOOS,
		CI:       DetectCI(),
		Go:       runtime.Version(),
	}, nil
}

// PrintEnv writes the environment report to w in the given format.
func (e *Environment) PrintEnv(w io.Writer, format string) error {
	info, err := e.Info()
	if err != nil {
		return err
	}
	return WriteInfo(w, info, format)
}

// WriteInfo writes an environment report to w in the given format.
func WriteInfo(w io.Writer, info Info, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(info)
	case FormatTable, "":
		fmt.Fprintln(w)
		color.New(color.Bold).Fprintln(w, "Running browser tests:")
		fmt.Fprintln(w)
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Setting", "Value"})
		table.SetAutoWrapText(false)
		table.AppendBulk(info.rows())
		table.Render()
		fmt.Fprintln(w)
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}
