package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/internal/provider"
	"github.com/prperemyshlev/adlink-service/internal/repository"
	"github.com/prperemyshlev/adlink-service/internal/utils"
	"github.com/prperemyshlev/adlink-service/pkg/observability"
	"go.uber.org/zap"
)

// Dependencies are the collaborators of the link service.
// ReplayGuard, Metrics and Logger are optional.
type Dependencies struct {
	FlowStates  repository.FlowStateRepository
	Connections repository.ConnectionRepository
	Adapters    AdapterSource
	Credentials CredentialSource
	Sealer      TokenSealer
	Auditor     *Auditor
	AuditLog    repository.AuditRepository
	ReplayGuard StateReplayGuard
	Metrics     *observability.LinkMetrics
	Logger      *zap.Logger
}

// linkService implements LinkService interface
type linkService struct {
	flowStates  repository.FlowStateRepository
	connections repository.ConnectionRepository
	adapters    AdapterSource
	credentials CredentialSource
	sealer      TokenSealer
	auditor     *Auditor
	auditLog    repository.AuditRepository
	replay      StateReplayGuard
	metrics     *observability.LinkMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewLinkService creates a new link service
func NewLinkService(deps Dependencies) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auditor := deps.Auditor
	if auditor == nil {
		auditor = NewAuditor(nil, nil, logger)
	}

	return &linkService{
		flowStates:  deps.FlowStates,
		connections: deps.Connections,
		adapters:    deps.Adapters,
		credentials: deps.Credentials,
		sealer:      deps.Sealer,
		auditor:     auditor,
		auditLog:    deps.AuditLog,
		replay:      deps.ReplayGuard,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Initiate starts a flow and returns the provider consent URL
func (s *linkService) Initiate(ctx context.Context, platform domain.Platform, userID, redirectURI string) (*InitiateResult, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%q: %w", platform, domain.ErrUnsupportedPlatform)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required: %w", domain.ErrInvalidRequest)
	}
	if err := validateRedirectURI(redirectURI); err != nil {
		return nil, err
	}

	// credentials are checked before anything is persisted
	creds, err := s.credentials.Credentials(platform)
	if err != nil {
		s.logger.Error("platform is not configured", zap.String("platform", platform.String()), zap.Error(err))
		return nil, err
	}

	adapter, err := s.adapters.Get(platform)
	if err != nil {
		return nil, err
	}

	state, err := utils.GenerateState()
	if err != nil {
		return nil, err
	}

	record := domain.NewFlowStateRecord(state, userID, platform, redirectURI, s.now())
	if err := s.flowStates.Create(ctx, record); err != nil {
		s.logger.Error("failed to persist flow state", zap.String("platform", platform.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to persist flow state: %w", err)
	}

	s.metrics.FlowInitiated(ctx, platform.String())
	s.auditor.Record(ctx, domain.EventFlowInitiated, userID, platform, nil)

	return &InitiateResult{
		AuthURL:   adapter.AuthorizationURL(creds.ClientID, redirectURI, state),
		State:     state,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Complete redeems the state, exchanges the code and stores the connection
func (s *linkService) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResult, error) {
	if req.Error != "" {
		s.logger.Info("provider declined authorization",
			zap.String("error", req.Error),
			zap.String("error_description", req.ErrorDescription))
		err := fmt.Errorf("%w: %s", domain.ErrAuthorizationDenied, req.Error)
		s.fail(ctx, req.UserID, req.Platform, observability.OutcomeDenied, err)
		return nil, err
	}

	if req.Code == "" || req.State == "" {
		err := fmt.Errorf("code and state are required: %w", domain.ErrInvalidRequest)
		s.fail(ctx, req.UserID, req.Platform, observability.OutcomeError, err)
		return nil, err
	}

	record, err := s.flowStates.Consume(ctx, req.State)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("failed to consume flow state: %w", err)
			s.logger.Error("flow state store unavailable", zap.Error(err))
			s.fail(ctx, req.UserID, req.Platform, observability.OutcomeError, err)
			return nil, err
		}
		s.detectReplay(ctx, req)
		s.fail(ctx, req.UserID, req.Platform, observability.OutcomeInvalidState, domain.ErrInvalidOrExpiredState)
		return nil, domain.ErrInvalidOrExpiredState
	}
	s.markConsumed(ctx, req.State)

	if record.IsExpired(s.now()) {
		s.fail(ctx, record.UserID, record.Platform, observability.OutcomeTimedOut, domain.ErrFlowTimedOut)
		return nil, domain.ErrFlowTimedOut
	}

	platform, redirectURI, err := resolveFlow(record, req)
	if err != nil {
		s.fail(ctx, record.UserID, record.Platform, observability.OutcomeInvalidState, err)
		return nil, err
	}

	creds, err := s.credentials.Credentials(platform)
	if err != nil {
		s.fail(ctx, record.UserID, platform, observability.OutcomeError, err)
		return nil, err
	}

	adapter, err := s.adapters.Get(platform)
	if err != nil {
		s.fail(ctx, record.UserID, platform, observability.OutcomeError, err)
		return nil, err
	}

	tokens, err := adapter.ExchangeCode(ctx, creds.ClientID, creds.ClientSecret, req.Code, redirectURI)
	if err != nil {
		s.logger.Error("token exchange failed", zap.String("platform", platform.String()), zap.Error(err))
		s.fail(ctx, record.UserID, platform, observability.OutcomeExchangeFailed, err)
		return nil, err
	}

	verification := s.verify(ctx, adapter, tokens.AccessToken, creds)

	conn, err := s.buildConnection(record.UserID, platform, tokens, verification)
	if err != nil {
		s.fail(ctx, record.UserID, platform, observability.OutcomeError, err)
		return nil, err
	}

	if err := s.connections.Upsert(ctx, conn); err != nil {
		err = fmt.Errorf("failed to store connection: %w", err)
		s.fail(ctx, record.UserID, platform, observability.OutcomeError, err)
		return nil, err
	}

	s.auditor.Record(ctx, domain.EventLinkSucceeded, record.UserID, platform, nil)
	s.metrics.FlowCompleted(ctx, platform.String(), string(conn.Status))
	s.logger.Info("advertising account linked",
		zap.String("user_id", record.UserID),
		zap.String("platform", platform.String()),
		zap.String("status", string(conn.Status)))

	return &CompleteResult{
		Platform:     platform,
		Status:       conn.Status,
		Verification: verification,
	}, nil
}

// Disconnect revokes the provider token when possible and deletes the connection.
// A failed revocation never blocks the deletion.
func (s *linkService) Disconnect(ctx context.Context, userID string, platform domain.Platform) error {
	if !platform.Valid() {
		return fmt.Errorf("%q: %w", platform, domain.ErrUnsupportedPlatform)
	}

	conn, err := s.connections.Get(ctx, userID, platform)
	if err != nil {
		return err
	}

	if err := s.revoke(ctx, conn); err != nil {
		s.logger.Warn("token revocation failed, deleting connection anyway",
			zap.String("user_id", userID),
			zap.String("platform", platform.String()),
			zap.Error(err))
		s.auditor.Record(ctx, domain.EventRevokeFailed, userID, platform, err)
	}

	if err := s.connections.Delete(ctx, userID, platform); err != nil {
		return err
	}

	s.auditor.Record(ctx, domain.EventDisconnected, userID, platform, nil)
	s.metrics.Disconnected(ctx, platform.String())

	return nil
}

// ListConnections returns every connection of the user
func (s *linkService) ListConnections(ctx context.Context, userID string) ([]*ConnectionView, error) {
	conns, err := s.connections.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]*ConnectionView, 0, len(conns))
	for _, c := range conns {
		views = append(views, newConnectionView(c))
	}
	return views, nil
}

// ConnectionStatus reports not_linked instead of an error when there is no connection
func (s *linkService) ConnectionStatus(ctx context.Context, userID string, platform domain.Platform) (*ConnectionView, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%q: %w", platform, domain.ErrUnsupportedPlatform)
	}

	conn, err := s.connections.Get(ctx, userID, platform)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ConnectionView{Platform: platform, Status: domain.StatusNotLinked}, nil
		}
		return nil, err
	}

	return newConnectionView(conn), nil
}

// AuditTrail returns the most recent audit events of the user, newest first
func (s *linkService) AuditTrail(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error) {
	if limit <= 0 || limit > MaxAuditTrail {
		limit = MaxAuditTrail
	}
	if s.auditLog == nil {
		return []*domain.AuditEvent{}, nil
	}
	return s.auditLog.ListByUserID(ctx, userID, limit)
}

func (s *linkService) verify(ctx context.Context, adapter provider.Adapter, accessToken string, creds domain.PlatformCredentials) domain.VerificationMetadata {
	verifier, ok := adapter.(provider.Verifier)
	if !ok {
		return domain.VerificationMetadata{
			Error:     "access verification is not available for this platform",
			CheckedAt: s.now().UTC(),
		}
	}

	meta := verifier.VerifyAccess(ctx, accessToken, creds)
	meta.CheckedAt = s.now().UTC()
	if !meta.Verified {
		s.logger.Warn("linked token failed access verification",
			zap.String("platform", adapter.Platform().String()),
			zap.Error(fmt.Errorf("%w: %s", domain.ErrVerificationFailed, meta.Error)))
	}
	return meta
}

func (s *linkService) buildConnection(userID string, platform domain.Platform, tokens *domain.TokenSet, meta domain.VerificationMetadata) (*domain.Connection, error) {
	access, err := s.sealer.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := s.sealer.EncryptOptional(tokens.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := s.now().UTC()
	conn := &domain.Connection{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  access,
		RefreshToken: refresh,
		Verification: meta,
		Status:       meta.Status(),
		UpdatedAt:    now,
	}
	if tokens.ExpiresIn > 0 {
		expiresAt := now.Add(tokens.ExpiresIn)
		conn.ExpiresAt = &expiresAt
	}

	return conn, nil
}

func (s *linkService) revoke(ctx context.Context, conn *domain.Connection) error {
	adapter, err := s.adapters.Get(conn.Platform)
	if err != nil {
		return err
	}
	revoker, ok := adapter.(provider.Revoker)
	if !ok {
		return nil
	}

	creds, err := s.credentials.Credentials(conn.Platform)
	if err != nil {
		return err
	}

	sealed := conn.AccessToken
	if conn.RefreshToken != nil {
		sealed = *conn.RefreshToken
	}
	token, err := s.sealer.Decrypt(sealed)
	if err != nil {
		return fmt.Errorf("failed to decrypt token: %w", err)
	}

	return revoker.RevokeToken(ctx, token, creds)
}

func (s *linkService) fail(ctx context.Context, userID string, platform domain.Platform, outcome string, err error) {
	s.auditor.Record(ctx, domain.EventLinkFailed, userID, platform, err)
	s.metrics.FlowCompleted(ctx, platform.String(), outcome)
}

func (s *linkService) markConsumed(ctx context.Context, state string) {
	if s.replay == nil {
		return
	}
	if err := s.replay.MarkConsumed(ctx, state); err != nil {
		s.logger.Warn("failed to record consumed state", zap.Error(err))
	}
}

func (s *linkService) detectReplay(ctx context.Context, req *CompleteRequest) {
	if s.replay == nil {
		return
	}
	seen, err := s.replay.WasConsumed(ctx, req.State)
	if err != nil {
		s.logger.Warn("failed to check consumed state", zap.Error(err))
		return
	}
	if seen {
		s.logger.Warn("consumed state presented again", zap.String("user_id", req.UserID))
		s.auditor.Record(ctx, domain.EventStateReplayed, req.UserID, req.Platform, domain.ErrInvalidOrExpiredState)
	}
}

// resolveFlow picks the platform and redirect URI of the exchange. Stored values win;
// caller values only fill gaps and must otherwise match.
func resolveFlow(record *domain.FlowStateRecord, req *CompleteRequest) (domain.Platform, string, error) {
	if req.UserID != "" && req.UserID != record.UserID {
		return "", "", fmt.Errorf("state was issued to another user: %w", domain.ErrInvalidOrExpiredState)
	}

	platform := record.Platform
	switch {
	case platform == "":
		platform = req.Platform
	case req.Platform != "" && req.Platform != platform:
		return "", "", fmt.Errorf("state was issued for %s, not %s: %w", platform, req.Platform, domain.ErrInvalidOrExpiredState)
	}
	if !platform.Valid() {
		return "", "", fmt.Errorf("%q: %w", platform, domain.ErrUnsupportedPlatform)
	}

	redirectURI := record.RedirectURI
	switch {
	case redirectURI == "":
		redirectURI = req.RedirectURI
	case req.RedirectURI != "" && req.RedirectURI != redirectURI:
		return "", "", domain.ErrRedirectURIMismatch
	}
	if redirectURI == "" {
		return "", "", fmt.Errorf("redirect uri is required: %w", domain.ErrInvalidRequest)
	}

	return platform, redirectURI, nil
}

func validateRedirectURI(raw string) error {
	if raw == "" {
		return fmt.Errorf("redirect uri is required: %w", domain.ErrInvalidRequest)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("redirect uri must be an absolute http(s) URL: %w", domain.ErrInvalidRequest)
	}
	return nil
}
