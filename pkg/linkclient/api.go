package linkclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API is the subset of the linking HTTP API the controller needs
type API interface {
	GetAuthURL(ctx context.Context, platform, userID, redirectURI string) (*AuthURL, error)
	ExchangeToken(ctx context.Context, params ExchangeParams) (*ExchangeResult, error)
	ListConnections(ctx context.Context) ([]Connection, error)
}

type AuthURL struct {
	AuthURL   string    `json:"authUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExchangeParams are the callback parameters forwarded to the server
type ExchangeParams struct {
	Code             string `json:"code,omitempty"`
	State            string `json:"state,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	RedirectURI      string `json:"redirectUri,omitempty"`
	Platform         string `json:"platform,omitempty"`
}

type AccountMetadata struct {
	AccountID    string    `json:"accountId,omitempty"`
	AccountCount *int      `json:"accountCount,omitempty"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

type ExchangeResult struct {
	Platform        string          `json:"platform"`
	Verified        bool            `json:"verified"`
	Status          string          `json:"status"`
	AccountMetadata AccountMetadata `json:"accountMetadata"`
}

type Connection struct {
	Platform        string           `json:"platform"`
	Status          string           `json:"status"`
	Verified        bool             `json:"verified"`
	AccountMetadata *AccountMetadata `json:"accountMetadata,omitempty"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty"`
}

// APIError is a non-2xx answer from the linking API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("linking api: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("linking api: %s: %s", e.Code, e.Message)
}

// APIClient speaks the JSON protocol of the linking service
type APIClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewAPIClient creates a client for baseURL, e.g. https://api.example.com/api/v1.
// A nil httpClient falls back to one with a 30s timeout.
func NewAPIClient(baseURL, accessToken string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

func (c *APIClient) GetAuthURL(ctx context.Context, platform, userID, redirectURI string) (*AuthURL, error) {
	body := map[string]string{
		"platform":    platform,
		"userId":      userID,
		"redirectUri": redirectURI,
	}
	var out AuthURL
	if err := c.do(ctx, http.MethodPost, "/links/auth-url", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) ExchangeToken(ctx context.Context, params ExchangeParams) (*ExchangeResult, error) {
	var out ExchangeResult
	if err := c.do(ctx, http.MethodPost, "/links/exchange", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) ListConnections(ctx context.Context) ([]Connection, error) {
	var out struct {
		Connections []Connection `json:"connections"`
	}
	if err := c.do(ctx, http.MethodGet, "/links", nil, &out); err != nil {
		return nil, err
	}
	return out.Connections, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
