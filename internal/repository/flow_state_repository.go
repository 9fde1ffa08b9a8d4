package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/pkg/database"
)

// flowStateRepository implements FlowStateRepository on PostgreSQL
type flowStateRepository struct {
	db *database.Postgres
}

// NewFlowStateRepository creates a new PostgreSQL flow state repository
func NewFlowStateRepository(db *database.Postgres) FlowStateRepository {
	return &flowStateRepository{db: db}
}

// Create stores a new flow state record
func (r *flowStateRepository) Create(ctx context.Context, record *domain.FlowStateRecord) error {
	query := `
		INSERT INTO oauth_flow_states (state, user_id, platform, redirect_uri, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.DB.ExecContext(ctx, query,
		record.State,
		record.UserID,
		record.Platform,
		record.RedirectURI,
		record.CreatedAt,
		record.ExpiresAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("failed to create flow state: %w", ErrDuplicateState)
		}
		return fmt.Errorf("failed to create flow state: %w", err)
	}

	return nil
}

// Consume deletes and returns the record in one statement, so concurrent
// callers race on the row lock and only one of them sees it.
func (r *flowStateRepository) Consume(ctx context.Context, state string) (*domain.FlowStateRecord, error) {
	query := `
		DELETE FROM oauth_flow_states
		WHERE state = $1
		RETURNING state, user_id, platform, redirect_uri, created_at, expires_at
	`

	record := &domain.FlowStateRecord{}
	err := r.db.DB.QueryRowContext(ctx, query, state).Scan(
		&record.State,
		&record.UserID,
		&record.Platform,
		&record.RedirectURI,
		&record.CreatedAt,
		&record.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("flow state not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to consume flow state: %w", err)
	}

	return record, nil
}

// DeleteExpired removes records that expired before now
func (r *flowStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM oauth_flow_states WHERE expires_at < $1`

	result, err := r.db.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired flow states: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
