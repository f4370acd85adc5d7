package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the effective configuration. It returns ValidationErrors
// listing every problem found, or nil.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs.Add("api.baseURL", "is required")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add("api.baseURL", "must be an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		errs.Add("api.timeout", "must not be negative", c.API.Timeout)
	}

	// Identity settings are optional as a whole but must be complete when used.
	if (c.Identity.ClientID == "") != (c.Identity.TenantID == "") {
		errs.Add("identity", "clientID and tenantID must be set together")
	}
	if c.Identity.AuthorityHost != "" {
		if u, err := url.Parse(c.Identity.AuthorityHost); err != nil || u.Scheme != "https" {
			errs.Add("identity.authorityHost", "must be an https URL", c.Identity.AuthorityHost)
		}
	}
	if c.Identity.RenewalMargin < 0 {
		errs.Add("identity.renewalMargin", "must not be negative", c.Identity.RenewalMargin)
	}

	s := c.Session
	if s.LockoutThreshold < 1 {
		errs.Add("session.lockoutThreshold", "must be at least 1", s.LockoutThreshold)
	}
	if s.WarningThreshold < 0 || s.WarningThreshold > s.LockoutThreshold {
		errs.Add("session.warningThreshold", "must be between 0 and lockoutThreshold", s.WarningThreshold)
	}
	if s.LockoutDuration <= 0 {
		errs.Add("session.lockoutDuration", "must be positive", s.LockoutDuration)
	}
	if s.RenewalInterval <= 0 {
		errs.Add("session.renewalInterval", "must be positive", s.RenewalInterval)
	}
	if s.DefaultTokenLifetime <= 0 {
		errs.Add("session.defaultTokenLifetime", "must be positive", s.DefaultTokenLifetime)
	}
	if s.MFA.MaxAttempts < 0 {
		errs.Add("session.mfa.maxAttempts", "must not be negative", s.MFA.MaxAttempts)
	}

	switch c.Storage.Backend {
	case StorageBackendFile, StorageBackendSQLite:
	default:
		errs.Add("storage.backend", fmt.Sprintf("must be %q or %q", StorageBackendFile, StorageBackendSQLite), c.Storage.Backend)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs.Add("log.format", "must be text or json", c.Log.Format)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
