package linkclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Route is where the user goes after a callback was handled
type Route string

const (
	RouteConnections Route = "connections"
	RouteNextStep    Route = "next-step"
)

// ErrFlowTimedOut is returned when the local marker outlived MarkerTTL
var ErrFlowTimedOut = errors.New("linking flow timed out")

// callbackParams are removed from the visible URL once a callback is seen
var callbackParams = []string{"code", "state", "error", "error_description", "error_reason", "error_code"}

// Navigator controls the browser location
type Navigator interface {
	// Navigate leaves the application for url
	Navigate(url string) error
	// ReplaceURL rewrites the current history entry without reloading
	ReplaceURL(url string) error
}

// Outcome describes a handled callback. Err is set when linking failed.
type Outcome struct {
	Route  Route
	Result *ExchangeResult
	Err    error
}

// Controller drives the browser half of a linking flow
type Controller struct {
	api         API
	markers     MarkerStore
	nav         Navigator
	userID      string
	redirectURI string
	logger      *zap.Logger
	now         func() time.Time
}

// NewController creates a controller for userID whose provider callbacks land on redirectURI
func NewController(api API, markers MarkerStore, nav Navigator, userID, redirectURI string, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		api:         api,
		markers:     markers,
		nav:         nav,
		userID:      userID,
		redirectURI: redirectURI,
		logger:      logger,
		now:         time.Now,
	}
}

// Connect starts linking platform and sends the browser to the provider
func (c *Controller) Connect(ctx context.Context, platform string) error {
	authURL, err := c.api.GetAuthURL(ctx, platform, c.userID, c.redirectURI)
	if err != nil {
		return fmt.Errorf("failed to start %s linking: %w", platform, err)
	}

	marker := Marker{
		Platform:    platform,
		UserID:      c.userID,
		StartedAt:   c.now(),
		RedirectURI: c.redirectURI,
	}
	if err := c.markers.Save(ctx, marker); err != nil {
		c.logger.Warn("failed to store flow marker", zap.Error(err))
	}

	return c.nav.Navigate(authURL.AuthURL)
}

// Resume handles a provider callback found in currentURL.
// It returns nil when the URL carries no callback parameters.
func (c *Controller) Resume(ctx context.Context, currentURL string) (*Outcome, error) {
	u, err := url.Parse(currentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse current url: %w", err)
	}

	query := u.Query()
	params := ExchangeParams{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
	if params.Code == "" && params.State == "" && params.Error == "" {
		return nil, nil
	}

	for _, name := range callbackParams {
		query.Del(name)
	}
	u.RawQuery = query.Encode()
	if err := c.nav.ReplaceURL(u.String()); err != nil {
		c.logger.Warn("failed to strip callback parameters", zap.Error(err))
	}

	marker, err := c.markers.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to load flow marker", zap.Error(err))
	}
	defer func() {
		if err := c.markers.Clear(ctx); err != nil {
			c.logger.Warn("failed to clear flow marker", zap.Error(err))
		}
	}()

	if marker != nil {
		if marker.Expired(c.now()) {
			return &Outcome{Route: RouteConnections, Err: ErrFlowTimedOut}, nil
		}
		params.Platform = marker.Platform
		params.RedirectURI = marker.RedirectURI
	}

	result, err := c.api.ExchangeToken(ctx, params)
	if err != nil {
		return &Outcome{Route: RouteConnections, Err: err}, nil
	}

	return &Outcome{Route: c.nextRoute(ctx), Result: result}, nil
}

// nextRoute sends users onward once more than one platform is linked
func (c *Controller) nextRoute(ctx context.Context) Route {
	connections, err := c.api.ListConnections(ctx)
	if err != nil {
		c.logger.Warn("failed to list connections", zap.Error(err))
		return RouteConnections
	}

	active := 0
	for _, conn := range connections {
		if conn.Status != "not_linked" {
			active++
		}
	}
	if active > 1 {
		return RouteNextStep
	}
	return RouteConnections
}
