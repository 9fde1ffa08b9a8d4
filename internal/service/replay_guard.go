package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/prperemyshlev/adlink-service/pkg/database"
)

// ReplayGuard keeps a short-lived tombstone for every consumed state in Redis.
// Only a hash of the state is stored.
type ReplayGuard struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewReplayGuard creates a new replay guard keeping tombstones for ttl
func NewReplayGuard(redis *database.Redis, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{redis: redis, ttl: ttl}
}

func (g *ReplayGuard) key(state string) string {
	sum := sha256.Sum256([]byte(state))
	return "flowstate:consumed:" + hex.EncodeToString(sum[:])
}

// MarkConsumed records that state has been redeemed
func (g *ReplayGuard) MarkConsumed(ctx context.Context, state string) error {
	if err := g.redis.Client.Set(ctx, g.key(state), "1", g.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark state consumed: %w", err)
	}
	return nil
}

// WasConsumed checks if state has been redeemed within the tombstone ttl
func (g *ReplayGuard) WasConsumed(ctx context.Context, state string) (bool, error) {
	exists, err := g.redis.Client.Exists(ctx, g.key(state)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check consumed state: %w", err)
	}
	return exists > 0, nil
}
