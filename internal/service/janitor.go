package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/repository"
	"go.uber.org/zap"
)

// FlowStateJanitor periodically purges expired flow states. Expiry is enforced
// on consume, so the janitor only bounds table growth.
type FlowStateJanitor struct {
	repo     repository.FlowStateRepository
	interval time.Duration
	logger   *zap.Logger
}

// NewFlowStateJanitor creates a janitor that runs every interval
func NewFlowStateJanitor(repo repository.FlowStateRepository, interval time.Duration, logger *zap.Logger) *FlowStateJanitor {
	return &FlowStateJanitor{repo: repo, interval: interval, logger: logger}
}

// Run purges until ctx is cancelled
func (j *FlowStateJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Purge(ctx)
		}
	}
}

// Purge deletes the flow states that have already expired
func (j *FlowStateJanitor) Purge(ctx context.Context) int64 {
	deleted, err := j.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		j.logger.Warn("failed to purge expired flow states", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		j.logger.Debug("purged expired flow states", zap.Int64("count", deleted))
	}
	return deleted
}
