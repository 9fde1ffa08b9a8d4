package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/internal/repository"
	"go.uber.org/zap"
)

const (
	auditTimeout   = 2 * time.Second
	auditQueueSize = 256
)

// AuditPublisher forwards audit events to an external stream
type AuditPublisher interface {
	Publish(ctx context.Context, event *domain.AuditEvent) error
}

type auditJob struct {
	ctx   context.Context
	event *domain.AuditEvent
}

// Auditor records security audit events. Record only enqueues: a background
// worker writes to the sinks, and sink errors are logged and dropped.
type Auditor struct {
	repo      repository.AuditRepository
	publisher AuditPublisher
	logger    *zap.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan auditJob
	pending sync.WaitGroup
	done    chan struct{}
}

// NewAuditor creates an auditor and starts its worker; repo and publisher may be nil.
// Close stops the worker.
func NewAuditor(repo repository.AuditRepository, publisher AuditPublisher, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Auditor{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan auditJob, auditQueueSize),
		done:      make(chan struct{}),
	}
	go a.run()
	return a
}

// Record queues an event named name. cause, when non-nil, is kept as the error text.
// It never blocks; when the queue is full the event is logged and dropped.
func (a *Auditor) Record(ctx context.Context, name, userID string, platform domain.Platform, cause error) {
	event := &domain.AuditEvent{
		ID:         uuid.New().String(),
		Name:       name,
		UserID:     userID,
		Platform:   platform,
		OccurredAt: time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	a.logger.Info("audit event",
		zap.String("event", name),
		zap.String("user_id", userID),
		zap.String("platform", platform.String()),
		zap.String("error", event.Error),
	)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.logger.Warn("auditor closed, dropping audit event", zap.String("event", name))
		return
	}

	// the request may already be cancelled when the worker gets to the event
	job := auditJob{ctx: context.WithoutCancel(ctx), event: event}

	a.pending.Add(1)
	select {
	case a.queue <- job:
	default:
		a.pending.Done()
		a.logger.Warn("audit queue full, dropping audit event", zap.String("event", name))
	}
}

// Flush waits until every queued event has reached the sinks
func (a *Auditor) Flush() {
	a.pending.Wait()
}

// Close stops accepting events and waits for the queue to drain or ctx to end
func (a *Auditor) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Auditor) run() {
	defer close(a.done)
	for job := range a.queue {
		a.deliver(job.ctx, job.event)
		a.pending.Done()
	}
}

func (a *Auditor) deliver(ctx context.Context, event *domain.AuditEvent) {
	if a.repo != nil {
		sinkCtx, cancel := context.WithTimeout(ctx, auditTimeout)
		if err := a.repo.Create(sinkCtx, event); err != nil {
			a.logger.Warn("failed to store audit event", zap.String("event", event.Name), zap.Error(err))
		}
		cancel()
	}

	if a.publisher != nil {
		sinkCtx, cancel := context.WithTimeout(ctx, auditTimeout)
		if err := a.publisher.Publish(sinkCtx, event); err != nil {
			a.logger.Warn("failed to publish audit event", zap.String("event", event.Name), zap.Error(err))
		}
		cancel()
	}
}
