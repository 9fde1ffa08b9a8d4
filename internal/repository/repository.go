package repository

import (
	"github.com/prperemyshlev/adlink-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	FlowState  FlowStateRepository
	Connection ConnectionRepository
	Audit      AuditRepository
}

// NewRepositories creates all repositories backed by PostgreSQL
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		FlowState:  NewFlowStateRepository(db),
		Connection: NewConnectionRepository(db),
		Audit:      NewAuditRepository(db),
	}
}

// WithRedisFlowState swaps the flow state store for the Redis implementation
func (r *Repositories) WithRedisFlowState(rdb *database.Redis) *Repositories {
	r.FlowState = NewRedisFlowStateRepository(rdb)
	return r
}
