package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/prperemyshlev/adlink-service/internal/dto"
	"github.com/prperemyshlev/adlink-service/internal/repository"
	"github.com/prperemyshlev/adlink-service/internal/service"
	"go.uber.org/zap"
)

const defaultAuditLimit = 50

// LinkHandler handles advertising account linking requests
type LinkHandler struct {
	linkService service.LinkService
	logger      *zap.Logger
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(linkService service.LinkService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
		logger:      logger,
	}
}

// GetAuthURL starts a linking flow
// @Summary Get provider authorization URL
// @Description Start linking an advertising platform and return the consent URL
// @Tags links
// @Accept json
// @Produce json
// @Param request body dto.AuthURLRequest true "Auth URL request"
// @Success 200 {object} dto.AuthURLResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /links/auth-url [post]
func (h *LinkHandler) GetAuthURL(c *gin.Context) {
	var req dto.AuthURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   dto.ErrCodeValidation,
			Message: err.Error(),
		})
		return
	}

	userID := c.GetString(ContextUserID)
	if req.UserID != "" && req.UserID != userID {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   dto.ErrCodeForbidden,
			Message: "userId does not match the authenticated user",
		})
		return
	}

	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.linkService.Initiate(c.Request.Context(), platform, userID, req.RedirectURI)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthURLResponse{
		AuthURL:   result.AuthURL,
		ExpiresAt: result.ExpiresAt,
	})
}

// ExchangeToken completes a linking flow
// @Summary Exchange authorization code
// @Description Redeem the state and code the provider appended to the redirect URI
// @Tags links
// @Accept json
// @Produce json
// @Param request body dto.ExchangeTokenRequest true "Exchange request"
// @Success 200 {object} dto.ExchangeTokenResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 410 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /links/exchange [post]
func (h *LinkHandler) ExchangeToken(c *gin.Context) {
	var req dto.ExchangeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   dto.ErrCodeValidation,
			Message: err.Error(),
		})
		return
	}

	completeReq := &service.CompleteRequest{
		UserID:           c.GetString(ContextUserID),
		Code:             req.Code,
		State:            req.State,
		Error:            req.Error,
		ErrorDescription: req.ErrorDescription,
		RedirectURI:      req.RedirectURI,
	}
	if strings.TrimSpace(req.Platform) != "" {
		platform, err := domain.ParsePlatform(req.Platform)
		if err != nil {
			h.writeError(c, err)
			return
		}
		completeReq.Platform = platform
	}

	result, err := h.linkService.Complete(c.Request.Context(), completeReq)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ExchangeTokenResponse{
		Success:         true,
		Platform:        result.Platform.String(),
		Verified:        result.Verified(),
		Status:          string(result.Status),
		AccountMetadata: accountMetadata(result.Verification),
	})
}

// ListConnections returns the caller's linked platforms
// @Summary List connections
// @Tags links
// @Produce json
// @Success 200 {object} dto.ConnectionsResponse
// @Router /links [get]
func (h *LinkHandler) ListConnections(c *gin.Context) {
	views, err := h.linkService.ListConnections(c.Request.Context(), c.GetString(ContextUserID))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := dto.ConnectionsResponse{Connections: make([]dto.ConnectionResponse, 0, len(views))}
	for _, v := range views {
		resp.Connections = append(resp.Connections, connectionResponse(v))
	}
	resp.Count = len(resp.Connections)

	c.JSON(http.StatusOK, resp)
}

// ListAuditEvents returns the recent linking audit trail of the caller
// @Summary List audit events
// @Tags links
// @Produce json
// @Param limit query int false "Maximum number of events"
// @Success 200 {object} dto.AuditEventsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /links/audit [get]
func (h *LinkHandler) ListAuditEvents(c *gin.Context) {
	var query dto.AuditTrailQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   dto.ErrCodeValidation,
			Message: err.Error(),
		})
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultAuditLimit
	}

	events, err := h.linkService.AuditTrail(c.Request.Context(), c.GetString(ContextUserID), query.Limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := dto.AuditEventsResponse{Events: make([]dto.AuditEventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, dto.AuditEventResponse{
			ID:         e.ID,
			Name:       e.Name,
			Platform:   e.Platform.String(),
			Error:      e.Error,
			OccurredAt: e.OccurredAt,
		})
	}
	resp.Count = len(resp.Events)

	c.JSON(http.StatusOK, resp)
}

// GetConnectionStatus reports whether a platform is linked and ads-capable
// @Summary Get connection status
// @Tags links
// @Produce json
// @Param platform path string true "Platform"
// @Success 200 {object} dto.ConnectionResponse
// @Router /links/{platform}/status [get]
func (h *LinkHandler) GetConnectionStatus(c *gin.Context) {
	platform, err := domain.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	view, err := h.linkService.ConnectionStatus(c.Request.Context(), c.GetString(ContextUserID), platform)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, connectionResponse(view))
}

// Disconnect removes a linked platform
// @Summary Disconnect platform
// @Tags links
// @Produce json
// @Param platform path string true "Platform"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /links/{platform} [delete]
func (h *LinkHandler) Disconnect(c *gin.Context) {
	platform, err := domain.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.linkService.Disconnect(c.Request.Context(), c.GetString(ContextUserID), platform); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: true,
		Message: platform.String() + " disconnected",
	})
}

// writeError maps service errors to HTTP responses. Denial and timeout messages
// are written for end users; configuration and provider errors keep their text.
func (h *LinkHandler) writeError(c *gin.Context, err error) {
	var cfgErr *domain.ConfigurationError
	var exErr *domain.ProviderExchangeError

	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   dto.ErrCodeNotConfigured,
			Message: cfgErr.Error(),
			Details: gin.H{"platform": cfgErr.Platform, "missing": cfgErr.Missing},
		})
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   dto.ErrCodeUnsupportedPlatform,
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrAuthorizationDenied):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   dto.ErrCodeAuthorizationDenied,
			Message: "Access was not granted. You can try connecting again.",
		})
	case errors.Is(err, domain.ErrFlowTimedOut):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error:   dto.ErrCodeFlowTimedOut,
			Message: "The connection took too long to complete. Please start again.",
		})
	case errors.Is(err, domain.ErrInvalidOrExpiredState):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error:   dto.ErrCodeInvalidState,
			Message: "This connection link is no longer valid. Please start again.",
		})
	case errors.Is(err, domain.ErrRedirectURIMismatch):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   dto.ErrCodeRedirectMismatch,
			Message: err.Error(),
		})
	case errors.As(err, &exErr):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   dto.ErrCodeProviderExchange,
			Message: exErr.Error(),
			Details: gin.H{"platform": exErr.Platform, "status": exErr.StatusCode},
		})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   dto.ErrCodeValidation,
			Message: err.Error(),
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   dto.ErrCodeNotFound,
			Message: err.Error(),
		})
	default:
		h.logger.Error("link request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   dto.ErrCodeInternal,
			Message: "Internal server error",
		})
	}
}

func accountMetadata(m domain.VerificationMetadata) dto.AccountMetadata {
	return dto.AccountMetadata{
		AccountID:    m.AccountID,
		AccountCount: m.AccountCount,
		Error:        m.Error,
		CheckedAt:    m.CheckedAt,
	}
}

func connectionResponse(v *service.ConnectionView) dto.ConnectionResponse {
	resp := dto.ConnectionResponse{
		Platform: v.Platform.String(),
		Status:   string(v.Status),
		Verified: v.Verification.Verified,
	}
	if v.Status == domain.StatusNotLinked {
		return resp
	}

	meta := accountMetadata(v.Verification)
	updatedAt := v.UpdatedAt
	resp.AccountMetadata = &meta
	resp.ExpiresAt = v.ExpiresAt
	resp.UpdatedAt = &updatedAt
	return resp
}
