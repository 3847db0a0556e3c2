package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	errs = append(errs, checkBaseURLField("gitlab.base_url", cfg.GitLab.BaseURL)...)
	errs = append(errs, checkBaseURLField("jenkins.base_url", cfg.Jenkins.BaseURL)...)
	errs = append(errs, checkBaseURLField("ai.base_url", cfg.AI.BaseURL)...)

	if cfg.Server.Token == "" {
		errs = append(errs, ValidationError{Field: "server.token", Message: "is required"})
	}
	if cfg.GitLab.Token == "" {
		errs = append(errs, ValidationError{Field: "gitlab.token", Message: "is required"})
	}
	if cfg.GitLab.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "gitlab.timeout", Message: "must not be negative"})
	}
	if cfg.Jenkins.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "jenkins.timeout", Message: "must not be negative"})
	}
	if cfg.AI.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "ai.timeout", Message: "must not be negative"})
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		errs = append(errs, ValidationError{Field: "ai.temperature", Message: "must be between 0 and 2"})
	}

	return errs
}

func checkBaseURLField(field, value string) []ValidationError {
	if value == "" {
		return []ValidationError{{Field: field, Message: "is required"}}
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("invalid URL %q", value)}}
	}
	return nil
}
