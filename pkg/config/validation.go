package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags
// plus a few cross-field rules that tags cannot express.
//
// Errors are reported with the full field path (e.g. "Mount.BaseDir")
// and the failed rule so that users can find the offending YAML key.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(cfg); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return fmt.Errorf("invalid configuration structure: %w", err)
		}

		var msgs []string
		for _, fieldErr := range err.(validator.ValidationErrors) {
			msgs = append(msgs, formatFieldError(fieldErr))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: database: %w", err)
	}

	return validateKerberos(&cfg.Kerberos)
}

// formatFieldError renders a single field error as "Field.Path: rule".
func formatFieldError(fieldErr validator.FieldError) string {
	// Namespace starts with the struct type name; drop it for readability
	path := fieldErr.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}

	if fieldErr.Param() != "" {
		return fmt.Sprintf("%s: failed %q validation (param %q)", path, fieldErr.Tag(), fieldErr.Param())
	}
	return fmt.Sprintf("%s: failed %q validation", path, fieldErr.Tag())
}

// validateKerberos checks Kerberos settings that depend on each other.
func validateKerberos(cfg *KerberosConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.KeytabPath == "" {
		return fmt.Errorf("invalid configuration: Kerberos.KeytabPath is required when kerberos is enabled")
	}
	return nil
}
