package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/internal/provider"
)

// LinkService drives the authorization-code flow for advertising accounts
type LinkService interface {
	Initiate(ctx context.Context, platform domain.Platform, userID, redirectURI string) (*InitiateResult, error)
	Complete(ctx context.Context, req *CompleteRequest) (*CompleteResult, error)
	Disconnect(ctx context.Context, userID string, platform domain.Platform) error
	ListConnections(ctx context.Context, userID string) ([]*ConnectionView, error)
	ConnectionStatus(ctx context.Context, userID string, platform domain.Platform) (*ConnectionView, error)
	AuditTrail(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error)
}

// MaxAuditTrail caps how many audit events AuditTrail returns
const MaxAuditTrail = 100

// AdapterSource resolves the provider adapter of a platform
type AdapterSource interface {
	Get(platform domain.Platform) (provider.Adapter, error)
}

// CredentialSource returns operator credentials, or a *domain.ConfigurationError
type CredentialSource interface {
	Credentials(platform domain.Platform) (domain.PlatformCredentials, error)
}

// TokenSealer encrypts provider tokens before they are stored
type TokenSealer interface {
	Encrypt(plaintext string) (string, error)
	EncryptOptional(plaintext *string) (*string, error)
	Decrypt(ciphertext string) (string, error)
}

// StateReplayGuard remembers consumed states so replays can be told apart from unknown states
type StateReplayGuard interface {
	MarkConsumed(ctx context.Context, state string) error
	WasConsumed(ctx context.Context, state string) (bool, error)
}

// InitiateResult is returned when a flow is started
type InitiateResult struct {
	AuthURL   string
	State     string
	ExpiresAt time.Time
}

// CompleteRequest carries the parameters the provider appended to the redirect URI.
// Platform and RedirectURI are optional and must match the issued flow when set.
type CompleteRequest struct {
	UserID           string
	Code             string
	State            string
	Error            string
	ErrorDescription string
	Platform         domain.Platform
	RedirectURI      string
}

// CompleteResult is what downstream consumers use to gate on advertising access
type CompleteResult struct {
	Platform     domain.Platform
	Status       domain.ConnectionStatus
	Verification domain.VerificationMetadata
}

// Verified reports whether the linked token carries advertising access
func (r *CompleteResult) Verified() bool {
	return r.Verification.Verified
}

// ConnectionView is a connection without its token material
type ConnectionView struct {
	Platform     domain.Platform
	Status       domain.ConnectionStatus
	Verification domain.VerificationMetadata
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}

func newConnectionView(c *domain.Connection) *ConnectionView {
	return &ConnectionView{
		Platform:     c.Platform,
		Status:       c.Status,
		Verification: c.Verification,
		ExpiresAt:    c.ExpiresAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
