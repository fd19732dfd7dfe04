// Package backend contains the domain type for a configured MCP backend
// and its validation rules.
package backend

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// namePattern restricts backend names to characters that are safe to embed
// in a method prefix ("alpha/tools/list") and in a filesystem-scoped socket
// path component.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ErrInvalidName is returned by Descriptor.Validate and by name-resolution
// call sites (the Router repeats this check on every dispatch; see
// internal/router) when a name contains a path separator, a "..", or a
// character outside namePattern.
var ErrInvalidName = errors.New("invalid backend name")

// Descriptor is the immutable configuration for one supervised backend
// process, per spec §3 "BackendDescriptor".
type Descriptor struct {
	// Name uniquely identifies the backend. No slashes, no "..".
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Command is the executable path or name to spawn.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`
	// Args are passed to Command in order.
	Args []string `yaml:"args" mapstructure:"args"`
	// Env is merged over the inherited process environment.
	Env map[string]string `yaml:"env" mapstructure:"env"`
}

// Validate checks the name invariants spec §3 requires of every backend
// name: no slashes, no "..", and (generalizing slightly, grounded on the
// teacher's upstream.Upstream.Validate character-class check) restricted
// to a safe charset.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := ValidateName(d.Name); err != nil {
		return fmt.Errorf("backend %q: %w", d.Name, err)
	}
	if d.Command == "" {
		return fmt.Errorf("command is required for backend %q", d.Name)
	}
	return nil
}

// ValidateName applies the name invariants spec §4.3 "Name validation"
// requires both at configuration time and on every Router dispatch.
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") || !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}
