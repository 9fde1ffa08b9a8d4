package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

const (
	flowStateKeyPrefix = "oauthflow:state:"

	// flowStateGrace keeps expired records readable for a while so a late
	// callback is reported as timed out rather than unknown.
	flowStateGrace = time.Hour
)

// redisFlowStateRepository implements FlowStateRepository on Redis
type redisFlowStateRepository struct {
	redis *database.Redis
}

// NewRedisFlowStateRepository creates a new Redis flow state repository
func NewRedisFlowStateRepository(rdb *database.Redis) FlowStateRepository {
	return &redisFlowStateRepository{redis: rdb}
}

func (r *redisFlowStateRepository) key(state string) string {
	return flowStateKeyPrefix + state
}

// Create stores the record unless the state is already taken
func (r *redisFlowStateRepository) Create(ctx context.Context, record *domain.FlowStateRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal flow state: %w", err)
	}

	ttl := time.Until(record.ExpiresAt) + flowStateGrace
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := r.redis.Client.SetNX(ctx, r.key(record.State), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create flow state: %w", err)
	}
	if !ok {
		return fmt.Errorf("failed to create flow state: %w", ErrDuplicateState)
	}

	return nil
}

// Consume reads and removes the record with GETDEL
func (r *redisFlowStateRepository) Consume(ctx context.Context, state string) (*domain.FlowStateRecord, error) {
	data, err := r.redis.Client.GetDel(ctx, r.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("flow state not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to consume flow state: %w", err)
	}

	record := &domain.FlowStateRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow state: %w", err)
	}

	return record, nil
}

// DeleteExpired is a no-op: Redis evicts records through their TTL
func (r *redisFlowStateRepository) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
