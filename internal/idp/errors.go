package idp

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrNoAccount means no cached directory account is available for silent
// acquisition. The user has to sign in interactively first.
var ErrNoAccount = errors.New("no cached identity provider account")

// ProviderError is returned when the token endpoint rejects a request or
// cannot be reached.
type ProviderError struct {
	// Code is the OAuth2 error code, e.g. "invalid_grant". Empty for
	// transport failures.
	Code        string
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("identity provider error %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("identity provider error %s", e.Code)
	case e.Err != nil:
		return fmt.Sprintf("identity provider request failed: %v", e.Err)
	default:
		return "identity provider request failed"
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// InteractionRequired reports whether the cached grant is no longer usable
// and only an interactive sign-in can recover.
func (e *ProviderError) InteractionRequired() bool {
	switch e.Code {
	case "invalid_grant", "interaction_required", "login_required", "consent_required":
		return true
	}
	return false
}

// IsInteractionRequired reports whether err is a ProviderError demanding
// interactive sign-in.
func IsInteractionRequired(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.InteractionRequired()
}

func providerError(err error) error {
	if err == nil {
		return nil
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return &ProviderError{Code: re.ErrorCode, Description: re.ErrorDescription, Err: err}
	}
	return &ProviderError{Err: err}
}
