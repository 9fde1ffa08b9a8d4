package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedPlatform is returned for platform values outside the supported set
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrInvalidRequest is returned when mandatory inputs are missing or malformed
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAuthorizationDenied is returned when the user or provider declined the authorization
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrInvalidOrExpiredState is returned when a state was never issued, was already used or was purged
	ErrInvalidOrExpiredState = errors.New("invalid or expired state")

	// ErrFlowTimedOut is returned when a state exists but is older than FlowTTL
	ErrFlowTimedOut = errors.New("authorization flow timed out")

	// ErrRedirectURIMismatch is returned when the callback redirect URI differs from the one issued
	ErrRedirectURIMismatch = errors.New("redirect uri does not match the authorization request")

	// ErrVerificationFailed marks a token that does not carry advertising access
	ErrVerificationFailed = errors.New("advertising access verification failed")
)

// ConfigurationError reports missing operator secrets for a platform.
// Missing holds the environment variable names that must be set.
type ConfigurationError struct {
	Platform Platform
	Missing  []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s integration is not configured: missing %s", e.Platform, strings.Join(e.Missing, ", "))
}

// ProviderExchangeError is returned when a provider's token endpoint rejects a code.
// Body carries the provider's own diagnostic text.
type ProviderExchangeError struct {
	Platform   Platform
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderExchangeError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s token exchange failed (HTTP %d): %s", e.Platform, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s token exchange failed: %v", e.Platform, e.Err)
}

func (e *ProviderExchangeError) Unwrap() error {
	return e.Err
}
