package config

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	remoteTargetPattern = regexp.MustCompile(`//rb:remote-(.+)-test`)
	driverTargetPattern = regexp.MustCompile(`//rb:(.+)-test`)
)

// Target is the driver selection encoded in a CI test target name.
type Target struct {
	Driver string

	// RemoteBrowser is only set for remote targets.
	RemoteBrowser string
}

// TargetNameError is returned by ParseTestTarget for names that do not follow either target
// naming scheme.
type TargetNameError struct {
	Name string
}

func (e *TargetNameError) Error() string {
	return fmt.Sprintf("don't know how to extract browser name from %s", e.Name)
}

// ParseTestTarget derives the driver selection from a target name. "//rb:remote-<browser>-test"
// selects the remote driver with the given browser, and "//rb:<driver>-test" selects a driver
// directly. Dashes in the extracted name become underscores.
func ParseTestTarget(name string) (Target, error) {
	if m := remoteTargetPattern.FindStringSubmatch(name); m != nil {
		return Target{Driver: "remote", RemoteBrowser: dashesToUnderscores(m[1])}, nil
	}
	if m := driverTargetPattern.FindStringSubmatch(name); m != nil {
		return Target{Driver: dashesToUnderscores(m[1])}, nil
	}
	return Target{}, &TargetNameError{Name: name}
}

func dashesToUnderscores(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
