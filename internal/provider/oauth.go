package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 1 << 20

// oauthBase implements the authorization-code parts shared by every adapter
type oauthBase struct {
	platform      domain.Platform
	endpoints     Endpoints
	scopes        []string
	authParams    []oauth2.AuthCodeOption
	defaultExpiry time.Duration
	httpClient    *http.Client
}

func newOAuthBase(platform domain.Platform, client *http.Client, endpoints Endpoints, scopes []string, defaultExpiry time.Duration) oauthBase {
	if client == nil {
		client = http.DefaultClient
	}
	return oauthBase{
		platform:      platform,
		endpoints:     endpoints,
		scopes:        scopes,
		defaultExpiry: defaultExpiry,
		httpClient:    client,
	}
}

func (b *oauthBase) apply(opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

func (b *oauthBase) Platform() domain.Platform {
	return b.platform
}

// config builds a per-call oauth2 config. AuthStyleInParams avoids the
// library's auto-detection, which retries a failed exchange with a second request.
func (b *oauthBase) config(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       b.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   b.endpoints.AuthURL,
			TokenURL:  b.endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (b *oauthBase) AuthorizationURL(clientID, redirectURI, state string) string {
	return b.config(clientID, "", redirectURI).AuthCodeURL(state, b.authParams...)
}

func (b *oauthBase) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*domain.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)

	token, err := b.config(clientID, clientSecret, redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, b.exchangeError(err)
	}

	set := &domain.TokenSet{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   b.defaultExpiry,
	}
	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		set.RefreshToken = &refresh
	}
	if !token.Expiry.IsZero() {
		set.ExpiresIn = time.Until(token.Expiry).Round(time.Second)
	}

	return set, nil
}

func (b *oauthBase) exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &domain.ProviderExchangeError{
			Platform:   b.platform,
			StatusCode: re.Response.StatusCode,
			Body:       errorBody(re.Response.StatusCode, re.Body),
			Err:        err,
		}
	}
	return &domain.ProviderExchangeError{Platform: b.platform, Err: err}
}

// errorBody returns the provider's JSON error body verbatim, or the HTTP
// status text when the body is empty or not JSON.
func errorBody(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return http.StatusText(status)
	}
	return string(trimmed)
}

// HTTPError is a non-2xx response from a provider API call
type HTTPError struct {
	Platform   domain.Platform
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s API returned HTTP %d: %s", e.Platform, e.StatusCode, e.Body)
}

// do sends req and decodes a JSON response into out when out is non-nil
func (b *oauthBase) do(req *http.Request, out any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", b.platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", b.platform, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &HTTPError{Platform: b.platform, StatusCode: resp.StatusCode, Body: errorBody(resp.StatusCode, body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", b.platform, err)
	}
	return nil
}

func failedVerification(err error) domain.VerificationMetadata {
	return domain.VerificationMetadata{
		Verified: false,
		Error:    err.Error(),
	}
}

func accountCount(n int) *int {
	return &n
}
