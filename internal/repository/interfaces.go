package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
)

// FlowStateRepository stores in-flight authorization attempts.
// Consume must be atomic: of any number of concurrent calls for one state,
// at most one returns the record.
type FlowStateRepository interface {
	Create(ctx context.Context, record *domain.FlowStateRecord) error
	Consume(ctx context.Context, state string) (*domain.FlowStateRecord, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ConnectionRepository defines methods for linked account operations
type ConnectionRepository interface {
	Upsert(ctx context.Context, conn *domain.Connection) error
	Get(ctx context.Context, userID string, platform domain.Platform) (*domain.Connection, error)
	ListByUserID(ctx context.Context, userID string) ([]*domain.Connection, error)
	Delete(ctx context.Context, userID string, platform domain.Platform) error
}

// AuditRepository persists security audit events
type AuditRepository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
	ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error)
}
