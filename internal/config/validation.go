package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against its struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	ids := make(map[string]bool, len(cfg.Peers))
	for i, p := range cfg.Peers {
		if ids[p.ID] {
			return fmt.Errorf("peers[%d]: duplicate peer id %q", i, p.ID)
		}
		ids[p.ID] = true

		if _, err := p.TimeoutDuration(); err != nil {
			return fmt.Errorf("peers[%d]: %w", i, err)
		}
	}

	if _, err := cfg.Session.TTLDuration(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// formatValidationError reports the first failed field in a readable form.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
