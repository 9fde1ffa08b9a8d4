package dto

import "time"

// Error codes returned in ErrorResponse.Error
const (
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	ErrCodeNotConfigured       = "PLATFORM_NOT_CONFIGURED"
	ErrCodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	ErrCodeInvalidState        = "INVALID_OR_EXPIRED_STATE"
	ErrCodeFlowTimedOut        = "FLOW_TIMED_OUT"
	ErrCodeRedirectMismatch    = "REDIRECT_URI_MISMATCH"
	ErrCodeProviderExchange    = "PROVIDER_EXCHANGE_FAILED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// AuthURLResponse represents the consent URL of a started flow
type AuthURLResponse struct {
	AuthURL   string    `json:"authUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AccountMetadata describes what the access check found on the provider side
type AccountMetadata struct {
	AccountID    string    `json:"accountId,omitempty"`
	AccountCount *int      `json:"accountCount,omitempty"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

// ExchangeTokenResponse represents a completed link
type ExchangeTokenResponse struct {
	Success         bool            `json:"success"`
	Platform        string          `json:"platform"`
	Verified        bool            `json:"verified"`
	Status          string          `json:"status"`
	AccountMetadata AccountMetadata `json:"accountMetadata"`
}

// ConnectionResponse represents one linked platform, without token material
type ConnectionResponse struct {
	Platform        string           `json:"platform"`
	Status          string           `json:"status"`
	Verified        bool             `json:"verified"`
	AccountMetadata *AccountMetadata `json:"accountMetadata,omitempty"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty"`
}

// ConnectionsResponse lists the connections of the caller
type ConnectionsResponse struct {
	Connections []ConnectionResponse `json:"connections"`
	Count       int                  `json:"count"`
}

// AuditEventResponse is one security event recorded for the caller
type AuditEventResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AuditEventsResponse lists the audit trail of the caller, newest first
type AuditEventsResponse struct {
	Events []AuditEventResponse `json:"events"`
	Count  int                  `json:"count"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
