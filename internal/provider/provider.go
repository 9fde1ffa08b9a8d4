// Package provider implements one OAuth adapter per advertising platform.
// Adapters are stateless: operator secrets are passed in per call by the
// linking service, which owns the configuration.
package provider

import (
	"context"

	"github.com/prperemyshlev/adlink-service/internal/domain"
)

// Adapter builds authorization URLs and exchanges codes for one platform
type Adapter interface {
	// Platform returns the platform this adapter serves.
	Platform() domain.Platform

	// AuthorizationURL returns the provider consent URL with the platform's
	// fixed scopes; state and redirectURI are echoed verbatim.
	AuthorizationURL(clientID, redirectURI, state string) string

	// ExchangeCode trades an authorization code for tokens with a single call
	// to the token endpoint. Provider rejections are *domain.ProviderExchangeError.
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*domain.TokenSet, error)
}

// Verifier is implemented by adapters that can prove the token carries advertising access.
// Failures are reported in the returned metadata, never as an error.
type Verifier interface {
	VerifyAccess(ctx context.Context, accessToken string, creds domain.PlatformCredentials) domain.VerificationMetadata
}

// Revoker is implemented by adapters whose provider supports token revocation
type Revoker interface {
	RevokeToken(ctx context.Context, token string, creds domain.PlatformCredentials) error
}

// Endpoints are the provider URLs an adapter talks to
type Endpoints struct {
	AuthURL   string
	TokenURL  string
	VerifyURL string
	RevokeURL string
}

// Option customizes an adapter
type Option func(*oauthBase)

// WithEndpoints overrides the provider URLs, e.g. to point at a sandbox
func WithEndpoints(e Endpoints) Option {
	return func(b *oauthBase) {
		b.endpoints = e
	}
}
