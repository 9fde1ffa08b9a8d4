package domain

import "time"

// FlowTTL bounds how long an issued state may be redeemed
const FlowTTL = 10 * time.Minute

// FlowStateRecord represents one in-flight authorization attempt
type FlowStateRecord struct {
	State       string    `json:"state" db:"state"`
	UserID      string    `json:"user_id" db:"user_id"`
	Platform    Platform  `json:"platform" db:"platform"`
	RedirectURI string    `json:"redirect_uri" db:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
}

// NewFlowStateRecord builds a record that expires FlowTTL after now
func NewFlowStateRecord(state, userID string, platform Platform, redirectURI string, now time.Time) *FlowStateRecord {
	return &FlowStateRecord{
		State:       state,
		UserID:      userID,
		Platform:    platform,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(FlowTTL),
	}
}

// IsExpired checks if the record is past its expiry at the given time
func (r FlowStateRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
