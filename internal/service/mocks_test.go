package service

import (
	"context"
	"sync"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/internal/repository"
	"github.com/stretchr/testify/mock"
)

// MockAdapter is a provider adapter that can also verify and revoke
type MockAdapter struct {
	mock.Mock
	platform domain.Platform
}

func (m *MockAdapter) Platform() domain.Platform {
	return m.platform
}

func (m *MockAdapter) AuthorizationURL(clientID, redirectURI, state string) string {
	args := m.Called(clientID, redirectURI, state)
	return args.String(0)
}

func (m *MockAdapter) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*domain.TokenSet, error) {
	args := m.Called(ctx, clientID, clientSecret, code, redirectURI)
	tokens, _ := args.Get(0).(*domain.TokenSet)
	return tokens, args.Error(1)
}

func (m *MockAdapter) VerifyAccess(ctx context.Context, accessToken string, creds domain.PlatformCredentials) domain.VerificationMetadata {
	args := m.Called(ctx, accessToken, creds)
	return args.Get(0).(domain.VerificationMetadata)
}

func (m *MockAdapter) RevokeToken(ctx context.Context, token string, creds domain.PlatformCredentials) error {
	args := m.Called(ctx, token, creds)
	return args.Error(0)
}

// MockConnectionRepository is a mock implementation of ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) Upsert(ctx context.Context, conn *domain.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.Connection, error) {
	args := m.Called(ctx, userID, platform)
	conn, _ := args.Get(0).(*domain.Connection)
	return conn, args.Error(1)
}

func (m *MockConnectionRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Connection, error) {
	args := m.Called(ctx, userID)
	conns, _ := args.Get(0).([]*domain.Connection)
	return conns, args.Error(1)
}

func (m *MockConnectionRepository) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	args := m.Called(ctx, userID, platform)
	return args.Error(0)
}

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error) {
	args := m.Called(ctx, userID, limit)
	events, _ := args.Get(0).([]*domain.AuditEvent)
	return events, args.Error(1)
}

// memoryFlowStates is an in-process FlowStateRepository with an atomic consume
type memoryFlowStates struct {
	mu           sync.Mutex
	records      map[string]*domain.FlowStateRecord
	createErr    error
	consumeErr   error
	consumeCalls int
}

func newMemoryFlowStates() *memoryFlowStates {
	return &memoryFlowStates{records: make(map[string]*domain.FlowStateRecord)}
}

func (m *memoryFlowStates) Create(_ context.Context, record *domain.FlowStateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.records[record.State]; ok {
		return repository.ErrDuplicateState
	}
	copied := *record
	m.records[record.State] = &copied
	return nil
}

func (m *memoryFlowStates) Consume(_ context.Context, state string) (*domain.FlowStateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeCalls++
	if m.consumeErr != nil {
		return nil, m.consumeErr
	}
	record, ok := m.records[state]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(m.records, state)
	return record, nil
}

func (m *memoryFlowStates) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, r := range m.records {
		if r.IsExpired(now) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryFlowStates) get(state string) (*domain.FlowStateRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[state]
	return r, ok
}

func (m *memoryFlowStates) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memoryReplayGuard is an in-process StateReplayGuard
type memoryReplayGuard struct {
	mu       sync.Mutex
	consumed map[string]bool
}

func (g *memoryReplayGuard) MarkConsumed(_ context.Context, state string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.consumed == nil {
		g.consumed = make(map[string]bool)
	}
	g.consumed[state] = true
	return nil
}

func (g *memoryReplayGuard) WasConsumed(_ context.Context, state string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consumed[state], nil
}

// recordingPublisher captures published audit events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *domain.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}
