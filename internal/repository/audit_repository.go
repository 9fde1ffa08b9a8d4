package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/pkg/database"
)

// auditRepository implements AuditRepository interface
type auditRepository struct {
	db *database.Postgres
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.Postgres) AuditRepository {
	return &auditRepository{db: db}
}

// Create stores an audit event
func (r *auditRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO link_audit_events (id, event_name, user_id, platform, error, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		event.ID,
		event.Name,
		nullString(event.UserID),
		nullString(string(event.Platform)),
		nullString(event.Error),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	return nil
}

// ListByUserID returns the most recent events of a user, newest first
func (r *auditRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error) {
	query := `
		SELECT id, event_name, user_id, platform, error, occurred_at
		FROM link_audit_events
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit events by user id: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		event := &domain.AuditEvent{}
		var user, platform, errText sql.NullString

		if err := rows.Scan(&event.ID, &event.Name, &user, &platform, &errText, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		event.UserID = user.String
		event.Platform = domain.Platform(platform.String)
		event.Error = errText.String
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
