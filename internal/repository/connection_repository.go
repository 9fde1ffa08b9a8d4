package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/pkg/database"
)

// connectionRepository implements ConnectionRepository interface
type connectionRepository struct {
	db *database.Postgres
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *database.Postgres) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = `id, user_id, platform, access_token, refresh_token, expires_at, verification, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Upsert creates the connection or overwrites the existing one for the same user and platform
func (r *connectionRepository) Upsert(ctx context.Context, conn *domain.Connection) error {
	query := `
		INSERT INTO ad_connections (id, user_id, platform, access_token, refresh_token, expires_at, verification, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			verification = EXCLUDED.verification,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	if conn.UpdatedAt.IsZero() {
		conn.UpdatedAt = time.Now()
	}

	verification, err := json.Marshal(conn.Verification)
	if err != nil {
		return fmt.Errorf("failed to marshal verification metadata: %w", err)
	}

	err = r.db.DB.QueryRowContext(ctx, query,
		conn.ID,
		conn.UserID,
		conn.Platform,
		conn.AccessToken,
		conn.RefreshToken,
		conn.ExpiresAt,
		string(verification),
		conn.Status,
		conn.UpdatedAt,
	).Scan(&conn.ID, &conn.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}

	return nil
}

// Get retrieves the connection of a user for one platform
func (r *connectionRepository) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM ad_connections WHERE user_id = $1 AND platform = $2`

	conn, err := scanConnection(r.db.DB.QueryRowContext(ctx, query, userID, platform))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s connection not found: %w", platform, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return conn, nil
}

// ListByUserID retrieves every connection of a user
func (r *connectionRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM ad_connections WHERE user_id = $1 ORDER BY platform`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connections by user id: %w", err)
	}
	defer rows.Close()

	var conns []*domain.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}

	return conns, nil
}

// Delete removes the connection of a user for one platform
func (r *connectionRepository) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	query := `DELETE FROM ad_connections WHERE user_id = $1 AND platform = $2`

	result, err := r.db.DB.ExecContext(ctx, query, userID, platform)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s connection not found: %w", platform, ErrNotFound)
	}

	return nil
}

func scanConnection(row rowScanner) (*domain.Connection, error) {
	conn := &domain.Connection{}
	var refreshToken sql.NullString
	var expiresAt sql.NullTime
	var verification []byte

	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Platform,
		&conn.AccessToken,
		&refreshToken,
		&expiresAt,
		&verification,
		&conn.Status,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if refreshToken.Valid {
		conn.RefreshToken = &refreshToken.String
	}
	if expiresAt.Valid {
		conn.ExpiresAt = &expiresAt.Time
	}
	if err := json.Unmarshal(verification, &conn.Verification); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification metadata: %w", err)
	}

	return conn, nil
}
