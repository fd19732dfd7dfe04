package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate validates the Config using struct tags and cross-field rules,
// mirroring the teacher's OSSConfig.Validate.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateBackendNamesUnique(); err != nil {
		return err
	}
	if err := c.validateDurations(); err != nil {
		return err
	}

	for _, d := range c.Backends {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// validateBackendNamesUnique ensures no two backends share a name, since
// the Supervisor's map is keyed by name and a collision would silently
// shadow one backend with another.
func (c *Config) validateBackendNamesUnique() error {
	seen := make(map[string]struct{}, len(c.Backends))
	for _, d := range c.Backends {
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("backends: duplicate name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return nil
}

// validateDurations confirms the duration-valued string fields parse, so
// callers can rely on time.ParseDuration succeeding later.
func (c *Config) validateDurations() error {
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("request_timeout: %w", err)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors into a single
// user-friendly message, mirroring the teacher's formatValidationErrors.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
