package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/dto"
)

const callbackURI = "https://app.example.com/integrations/callback"

func (s *Suite) request(method, path, userID string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken(userID))
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err, "Failed to make request")
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, data
}

// startGoogleFlow requests a consent URL and returns the state it carries
func (s *Suite) startGoogleFlow(userID string) string {
	resp, body := s.request(http.MethodPost, "/api/v1/links/auth-url", userID, dto.AuthURLRequest{
		Platform:    "google",
		RedirectURI: callbackURI,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	var authURL dto.AuthURLResponse
	s.Require().NoError(json.Unmarshal(body, &authURL))

	u, err := url.Parse(authURL.AuthURL)
	s.Require().NoError(err)
	s.Equal(callbackURI, u.Query().Get("redirect_uri"))
	s.Equal("google-client", u.Query().Get("client_id"))

	state := u.Query().Get("state")
	s.Require().NotEmpty(state)
	return state
}

func (s *Suite) auditEvents(userID string) ([]string, error) {
	rows, err := s.Postgres.DB.Query(
		`SELECT event_name FROM link_audit_events WHERE user_id = $1 ORDER BY occurred_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Suite) TestLinkFlow() {
	state := s.startGoogleFlow("user-1")

	resp, body := s.request(http.MethodPost, "/api/v1/links/exchange", "user-1", dto.ExchangeTokenRequest{
		Code:  "good-code",
		State: state,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	var result dto.ExchangeTokenResponse
	s.Require().NoError(json.Unmarshal(body, &result))
	s.True(result.Success)
	s.True(result.Verified)
	s.Equal("google", result.Platform)
	s.Equal("linked", result.Status)
	s.Equal("1234567890", result.AccountMetadata.AccountID)

	resp, body = s.request(http.MethodGet, "/api/v1/links", "user-1", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var list dto.ConnectionsResponse
	s.Require().NoError(json.Unmarshal(body, &list))
	s.Equal(1, list.Count)
	s.NotContains(string(body), "ya29.access")

	var stored string
	s.Require().NoError(s.Postgres.DB.QueryRow(
		`SELECT access_token FROM ad_connections WHERE user_id = $1`, "user-1").Scan(&stored))
	s.NotEqual("ya29.access", stored, "tokens must be encrypted at rest")

	// the state is single use
	resp, body = s.request(http.MethodPost, "/api/v1/links/exchange", "user-1", dto.ExchangeTokenRequest{
		Code:  "good-code",
		State: state,
	})
	s.Equal(http.StatusGone, resp.StatusCode)
	var errResp dto.ErrorResponse
	s.Require().NoError(json.Unmarshal(body, &errResp))
	s.Equal(dto.ErrCodeInvalidState, errResp.Error)

	resp, _ = s.request(http.MethodDelete, "/api/v1/links/google", "user-1", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal([]string{"1//refresh"}, s.Provider.Revoked())

	resp, body = s.request(http.MethodGet, "/api/v1/links/google/status", "user-1", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var status dto.ConnectionResponse
	s.Require().NoError(json.Unmarshal(body, &status))
	s.Equal("not_linked", status.Status)

	s.Eventually(func() bool {
		names, err := s.auditEvents("user-1")
		return err == nil && slices.Contains(names, "oauth.link_succeeded")
	}, 5*time.Second, 50*time.Millisecond)

	resp, body = s.request(http.MethodGet, "/api/v1/links/audit?limit=100", "user-1", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var trail dto.AuditEventsResponse
	s.Require().NoError(json.Unmarshal(body, &trail))
	s.Require().NotEmpty(trail.Events)
	names := make([]string, 0, len(trail.Events))
	for _, e := range trail.Events {
		names = append(names, e.Name)
	}
	s.Contains(names, "oauth.link_succeeded")
	s.Contains(names, "oauth.flow_initiated")
}

func (s *Suite) TestProviderRejectsCode() {
	state := s.startGoogleFlow("user-2")

	resp, body := s.request(http.MethodPost, "/api/v1/links/exchange", "user-2", dto.ExchangeTokenRequest{
		Code:  "expired-code",
		State: state,
	})
	s.Equal(http.StatusBadGateway, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.Unmarshal(body, &errResp))
	s.Equal(dto.ErrCodeProviderExchange, errResp.Error)
	s.Contains(errResp.Message, "invalid_grant")

	resp, _ = s.request(http.MethodGet, "/api/v1/links/google/status", "user-2", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestDeniedConsent() {
	state := s.startGoogleFlow("user-3")

	resp, body := s.request(http.MethodPost, "/api/v1/links/exchange", "user-3", dto.ExchangeTokenRequest{
		State: state,
		Error: "access_denied",
	})
	s.Equal(http.StatusForbidden, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.Unmarshal(body, &errResp))
	s.Equal(dto.ErrCodeAuthorizationDenied, errResp.Error)

	var pending int
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM oauth_flow_states WHERE state = $1`, state).Scan(&pending))
	s.Equal(1, pending, "a denied callback must not consume the state")
}

func (s *Suite) TestStateOfAnotherUser() {
	state := s.startGoogleFlow("user-4")

	resp, _ := s.request(http.MethodPost, "/api/v1/links/exchange", "intruder", dto.ExchangeTokenRequest{
		Code:  "good-code",
		State: state,
	})
	s.Equal(http.StatusGone, resp.StatusCode)

	resp, body := s.request(http.MethodGet, "/api/v1/links", "intruder", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var list dto.ConnectionsResponse
	s.Require().NoError(json.Unmarshal(body, &list))
	s.Equal(0, list.Count)
}

func (s *Suite) TestUnconfiguredPlatform() {
	resp, body := s.request(http.MethodPost, "/api/v1/links/auth-url", "user-5", dto.AuthURLRequest{
		Platform:    "meta",
		RedirectURI: callbackURI,
	})
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.Unmarshal(body, &errResp))
	s.Equal(dto.ErrCodeNotConfigured, errResp.Error)
	s.Contains(errResp.Message, "META_APP_ID")

	var flows int
	s.Require().NoError(s.Postgres.DB.QueryRow(`SELECT COUNT(*) FROM oauth_flow_states`).Scan(&flows))
	s.Equal(0, flows)
}

func (s *Suite) TestRequiresAuthentication() {
	resp, _ := s.request(http.MethodGet, "/api/v1/links", "", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}
