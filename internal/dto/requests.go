package dto

// AuthURLRequest represents a request to start linking a platform
type AuthURLRequest struct {
	Platform    string `json:"platform" binding:"required"`
	UserID      string `json:"userId"`
	RedirectURI string `json:"redirectUri" binding:"required,url"`
}

// ExchangeTokenRequest carries the query parameters the provider appended to the redirect URI
type ExchangeTokenRequest struct {
	Code             string `json:"code"`
	State            string `json:"state"`
	Error            string `json:"error"`
	ErrorDescription string `json:"errorDescription"`
	RedirectURI      string `json:"redirectUri"`
	Platform         string `json:"platform"`
}

// AuditTrailQuery bounds the audit events returned to the caller
type AuditTrailQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
