package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Store.Type == "object" && cfg.Store.Object.Backend == "" {
		return fmt.Errorf("store.object.backend: required when store.type is object")
	}

	seen := make(map[string]bool, len(cfg.Grants))
	for i, g := range cfg.Grants {
		if g == "" {
			return fmt.Errorf("grants[%d]: empty tree", i)
		}
		if seen[g] {
			return fmt.Errorf("grants[%d]: duplicate tree %q", i, g)
		}
		seen[g] = true
	}
	return nil
}

// formatValidationError reports the first failed field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
