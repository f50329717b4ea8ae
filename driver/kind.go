package driver

import (
	"fmt"
	"strings"
)

// Kind selects a driver backend or a browser.
type Kind string

const (
	Chrome        Kind = "chrome"
	Edge          Kind = "edge"
	Firefox       Kind = "firefox"
	IE            Kind = "ie"
	Safari        Kind = "safari"
	SafariPreview Kind = "safari_preview"
	Remote        Kind = "remote"
	Playwright    Kind = "playwright"
)

// AllKinds lists every supported kind, in the order used for help output.
var AllKinds = []Kind{Chrome, Edge, Firefox, IE, Safari, SafariPreview, Remote, Playwright}

func (k Kind) String() string { return string(k) }

// IsBrowser reports whether k names an actual browser, as opposed to a relay such as Remote.
func (k Kind) IsBrowser() bool {
	switch k {
	case Remote, Playwright, "":
		return false
	}
	return k.Valid()
}

// Valid reports whether k is one of AllKinds.
func (k Kind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a configuration value to a Kind. Dashes are accepted in place of
// underscores, so "safari-preview" and "safari_preview" are equivalent.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !k.Valid() {
		return "", fmt.Errorf("unknown driver kind %q", s)
	}
	return k, nil
}
