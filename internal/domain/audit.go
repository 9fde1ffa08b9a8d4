package domain

import "time"

// Security audit event names
const (
	EventLinkSucceeded = "oauth.link_succeeded"
	EventLinkFailed    = "oauth.link_failed"
	EventStateReplayed = "oauth.state_replayed"
	EventDisconnected  = "oauth.disconnected"
	EventRevokeFailed  = "oauth.revoke_failed"
	EventFlowInitiated = "oauth.flow_initiated"
)

// AuditEvent is a security-relevant record of a linking attempt
type AuditEvent struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"event_name"`
	UserID     string    `json:"user_id,omitempty" db:"user_id"`
	Platform   Platform  `json:"platform,omitempty" db:"platform"`
	Error      string    `json:"error,omitempty" db:"error"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}
