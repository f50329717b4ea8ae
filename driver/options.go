package driver

import (
	"fmt"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const traceLogLevel = "trace"

// Options is the browser configuration passed to a Factory. The zero value is valid and means
// "browser defaults".
type Options struct {
	// Args are extra command-line arguments for the browser process.
	Args []string

	// Binary overrides the browser executable. Empty means the driver decides.
	Binary string

	// LogLevel is the browser-side log level, if the browser supports one.
	LogLevel string

	// RequireWindowFocus is only meaningful for Internet Explorer.
	RequireWindowFocus bool

	// TechnologyPreview selects Safari Technology Preview instead of Safari.
	TechnologyPreview bool

	// Prefs are browser preferences, passed through unchanged.
	Prefs map[string]interface{}
}

func (o Options) clone() Options {
	ret := o
	ret.Args = append([]string(nil), o.Args...)
	if o.Prefs != nil {
		ret.Prefs = make(map[string]interface{}, len(o.Prefs))
		for k, v := range o.Prefs {
			ret.Prefs[k] = v
		}
	}
	return ret
}

// HasArg reports whether arg is already present in Args.
func (o Options) HasArg(arg string) bool {
	for _, a := range o.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// OptionsBuilder turns call-site options into the final options for a browser kind.
type OptionsBuilder interface {
	Build(browser Kind, base Options) (Options, error)
}

// BuildSettings are the environment-level inputs that per-browser builders may apply.
type BuildSettings struct {
	Headless bool
	Debug    bool

	// Binaries holds per-browser executable overrides. An undefined value means no override;
	// a defined empty value is passed through as-is.
	Binaries map[Kind]ldvalue.OptionalString
}

// BuildFunc adapts base options for one browser kind. It receives a private copy of the
// options and may modify it freely.
type BuildFunc func(opts Options, s BuildSettings) Options

var builders = map[Kind]BuildFunc{
	Chrome:        chromiumOptions(Chrome),
	Edge:          chromiumOptions(Edge),
	Firefox:       firefoxOptions,
	IE:            ieOptions,
	SafariPreview: safariPreviewOptions,
}

// TableBuilder is the default OptionsBuilder. Browsers without an entry in the builder table get
// their base options unchanged.
type TableBuilder struct {
	Settings BuildSettings
}

func (b TableBuilder) Build(browser Kind, base Options) (Options, error) {
	if !browser.Valid() {
		return Options{}, fmt.Errorf("cannot build options for unknown browser %q", browser)
	}
	opts := base.clone()
	if f, ok := builders[browser]; ok {
		opts = f(opts, b.Settings)
	}
	return opts, nil
}

func applyBinaryOverride(opts *Options, s BuildSettings, browser Kind) {
	if opts.Binary != "" {
		return
	}
	if override, ok := s.Binaries[browser]; ok && override.IsDefined() {
		opts.Binary = override.StringValue()
	}
}

func appendArg(opts *Options, arg string) {
	if !opts.HasArg(arg) {
		opts.Args = append(opts.Args, arg)
	}
}

func chromiumOptions(browser Kind) BuildFunc {
	return func(opts Options, s BuildSettings) Options {
		applyBinaryOverride(&opts, s, browser)
		if s.Headless {
			appendArg(&opts, "--headless=chrome")
		}
		return opts
	}
}

func firefoxOptions(opts Options, s BuildSettings) Options {
	if s.Debug {
		opts.LogLevel = traceLogLevel
	}
	applyBinaryOverride(&opts, s, Firefox)
	if s.Headless {
		appendArg(&opts, "--headless")
	}
	return opts
}

func ieOptions(opts Options, _ BuildSettings) Options {
	opts.RequireWindowFocus = true
	return opts
}

func safariPreviewOptions(opts Options, _ BuildSettings) Options {
	opts.TechnologyPreview = true
	return opts
}
