package domain

import "time"

// ConnectionStatus is the linking state exposed to downstream consumers.
// A linked_unverified connection holds a valid token whose advertising scope
// could not be confirmed; campaign creation must treat it as blocked, not absent.
type ConnectionStatus string

const (
	StatusLinked           ConnectionStatus = "linked"
	StatusLinkedUnverified ConnectionStatus = "linked_unverified"
	StatusNotLinked        ConnectionStatus = "not_linked"
)

// VerificationMetadata holds the result of the provider-specific ads access check
type VerificationMetadata struct {
	Verified     bool      `json:"verified"`
	AccountID    string    `json:"accountId,omitempty"`
	AccountCount *int      `json:"accountCount,omitempty"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// Status derives the connection status from verification metadata
func (m VerificationMetadata) Status() ConnectionStatus {
	if m.Verified {
		return StatusLinked
	}
	return StatusLinkedUnverified
}

// Connection represents a linked advertising account for one user and platform
type Connection struct {
	ID           string               `json:"id" db:"id"`
	UserID       string               `json:"user_id" db:"user_id"`
	Platform     Platform             `json:"platform" db:"platform"`
	AccessToken  string               `json:"-" db:"access_token"`
	RefreshToken *string              `json:"-" db:"refresh_token"`
	ExpiresAt    *time.Time           `json:"expires_at" db:"expires_at"`
	Verification VerificationMetadata `json:"verification" db:"verification"`
	Status       ConnectionStatus     `json:"status" db:"status"`
	CreatedAt    time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" db:"updated_at"`
}

// TokenSet is the token material returned by a provider's token endpoint
type TokenSet struct {
	AccessToken  string
	RefreshToken *string
	TokenType    string
	ExpiresIn    time.Duration
}
