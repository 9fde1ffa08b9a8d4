package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = domain.PlatformCredentials{
	ClientID:       "client-id",
	ClientSecret:   "client-secret",
	DeveloperToken: "dev-token",
}

func fakeEndpoints(srv *httptest.Server) Endpoints {
	return Endpoints{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		VerifyURL: srv.URL + "/verify",
		RevokeURL: srv.URL + "/revoke",
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestAuthorizationURL(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		host    string
		scope   string
		extra   map[string]string
	}{
		{
			name:    "google",
			adapter: NewGoogleAdapter(nil),
			host:    "accounts.google.com",
			scope:   "https://www.googleapis.com/auth/adwords openid email",
			extra:   map[string]string{"access_type": "offline", "prompt": "consent"},
		},
		{
			name:    "meta",
			adapter: NewMetaAdapter(nil),
			host:    "www.facebook.com",
			scope:   "ads_management,ads_read,business_management",
		},
		{
			name:    "linkedin",
			adapter: NewLinkedInAdapter(nil),
			host:    "www.linkedin.com",
			scope:   "r_ads rw_ads r_basicprofile",
		},
		{
			name:    "microsoft",
			adapter: NewMicrosoftAdapter(nil, ""),
			host:    "login.microsoftonline.com",
			scope:   "https://ads.microsoft.com/msads.manage offline_access openid profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.adapter.AuthorizationURL("client-id", "https://app/cb", "state-123")
			assert.Contains(t, raw, "redirect_uri=https%3A%2F%2Fapp%2Fcb")

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.host, u.Host)

			q := u.Query()
			assert.Equal(t, "client-id", q.Get("client_id"))
			assert.Equal(t, "https://app/cb", q.Get("redirect_uri"))
			assert.Equal(t, "state-123", q.Get("state"))
			assert.Equal(t, "code", q.Get("response_type"))
			assert.Equal(t, tt.scope, q.Get("scope"))
			assert.Empty(t, q.Get("client_secret"))
			for k, v := range tt.extra {
				assert.Equal(t, v, q.Get(k), k)
			}
		})
	}
}

func TestMicrosoftTenantInEndpoints(t *testing.T) {
	a := NewMicrosoftAdapter(nil, "contoso.onmicrosoft.com")
	raw := a.AuthorizationURL("client-id", "https://app/cb", "s")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/contoso.onmicrosoft.com/oauth2/v2.0/authorize", u.Path)

	_, isRevoker := any(a).(Revoker)
	assert.False(t, isRevoker)
}

func TestExchangeCodeWithoutRefreshToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://app/cb", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "access",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	a := NewMetaAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
	tokens, err := a.ExchangeCode(context.Background(), "client-id", "client-secret", "the-code", "https://app/cb")
	require.NoError(t, err)

	assert.Equal(t, "access", tokens.AccessToken)
	assert.Nil(t, tokens.RefreshToken)
	assert.InDelta(t, float64(time.Hour), float64(tokens.ExpiresIn), float64(2*time.Second))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExchangeCodeDefaultsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"token_type":    "Bearer",
		})
	}))
	defer srv.Close()

	a := NewLinkedInAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
	tokens, err := a.ExchangeCode(context.Background(), "client-id", "client-secret", "code", "https://app/cb")
	require.NoError(t, err)

	require.NotNil(t, tokens.RefreshToken)
	assert.Equal(t, "refresh", *tokens.RefreshToken)
	assert.Equal(t, 60*24*time.Hour, tokens.ExpiresIn)
}

func TestExchangeCodeProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantBody string
	}{
		{
			name:     "json error body is surfaced",
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid_grant","error_description":"Bad Request"}`,
			wantBody: `{"error":"invalid_grant","error_description":"Bad Request"}`,
		},
		{
			name:     "empty body falls back to status text",
			status:   http.StatusUnauthorized,
			body:     "",
			wantBody: "Unauthorized",
		},
		{
			name:     "html body falls back to status text",
			status:   http.StatusInternalServerError,
			body:     "<html>oops</html>",
			wantBody: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a := NewGoogleAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
			_, err := a.ExchangeCode(context.Background(), "client-id", "client-secret", "code", "https://app/cb")
			require.Error(t, err)

			var exErr *domain.ProviderExchangeError
			require.True(t, errors.As(err, &exErr))
			assert.Equal(t, domain.PlatformGoogle, exErr.Platform)
			assert.Equal(t, tt.status, exErr.StatusCode)
			assert.Equal(t, tt.wantBody, exErr.Body)
			assert.Equal(t, int32(1), calls.Load(), "token endpoint must be called exactly once")
		})
	}
}

func TestGoogleVerifyAccess(t *testing.T) {
	accounts := []string{"customers/1234567890", "customers/555"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))
		writeJSON(w, http.StatusOK, map[string]any{"resourceNames": accounts})
	}))
	defer srv.Close()

	a := NewGoogleAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))

	meta := a.VerifyAccess(context.Background(), "access", testCreds)
	assert.True(t, meta.Verified)
	assert.Equal(t, "1234567890", meta.AccountID)
	require.NotNil(t, meta.AccountCount)
	assert.Equal(t, 2, *meta.AccountCount)
	assert.Equal(t, domain.StatusLinked, meta.Status())

	accounts = nil
	meta = a.VerifyAccess(context.Background(), "access", testCreds)
	assert.False(t, meta.Verified)
	assert.NotEmpty(t, meta.Error)
	assert.Equal(t, domain.StatusLinkedUnverified, meta.Status())
}

func TestVerifyAccessReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "DEVELOPER_TOKEN_NOT_APPROVED"})
	}))
	defer srv.Close()

	a := NewGoogleAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
	meta := a.VerifyAccess(context.Background(), "access", testCreds)

	assert.False(t, meta.Verified)
	assert.Contains(t, meta.Error, "403")
	assert.Contains(t, meta.Error, "DEVELOPER_TOKEN_NOT_APPROVED")
}

func TestMetaVerifyAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		assert.Equal(t, "account_id,name", r.URL.Query().Get("fields"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]string{{"id": "act_42", "account_id": "42"}},
		})
	}))
	defer srv.Close()

	a := NewMetaAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
	meta := a.VerifyAccess(context.Background(), "access", testCreds)

	assert.True(t, meta.Verified)
	assert.Equal(t, "42", meta.AccountID)
	require.NotNil(t, meta.AccountCount)
	assert.Equal(t, 1, *meta.AccountCount)
}

func TestLinkedInVerifyAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search", r.URL.Query().Get("q"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		assert.NotEmpty(t, r.Header.Get("LinkedIn-Version"))
		_, _ = w.Write([]byte(`{"elements":[{"id":507404993},{"id":507404994}]}`))
	}))
	defer srv.Close()

	a := NewLinkedInAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
	meta := a.VerifyAccess(context.Background(), "access", testCreds)

	assert.True(t, meta.Verified)
	assert.Equal(t, "507404993", meta.AccountID)
	require.NotNil(t, meta.AccountCount)
	assert.Equal(t, 2, *meta.AccountCount)
}

func TestMicrosoftVerifyAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "dev-token", r.Header.Get("DeveloperToken"))
		_, _ = w.Write([]byte(`{"User":{"Id":77,"CustomerId":1001},"CustomerRoles":[{"CustomerId":1001,"AccountIds":[1,2,3]}]}`))
	}))
	defer srv.Close()

	a := NewMicrosoftAdapter(srv.Client(), "common", WithEndpoints(fakeEndpoints(srv)))
	meta := a.VerifyAccess(context.Background(), "access", testCreds)

	assert.True(t, meta.Verified)
	assert.Equal(t, "1001", meta.AccountID)
	require.NotNil(t, meta.AccountCount)
	assert.Equal(t, 3, *meta.AccountCount)
}

func TestRevokeToken(t *testing.T) {
	t.Run("google posts the token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "/revoke", r.URL.Path)
			assert.Equal(t, "refresh", r.PostForm.Get("token"))
		}))
		defer srv.Close()

		a := NewGoogleAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
		assert.NoError(t, a.RevokeToken(context.Background(), "refresh", testCreds))
	})

	t.Run("meta deletes permissions", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		}))
		defer srv.Close()

		a := NewMetaAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
		assert.NoError(t, a.RevokeToken(context.Background(), "access", testCreds))
	})

	t.Run("linkedin sends client credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
			assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		a := NewLinkedInAdapter(srv.Client(), WithEndpoints(fakeEndpoints(srv)))
		err := a.RevokeToken(context.Background(), "access", testCreds)

		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	})
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil, "")

	for _, p := range domain.Platforms() {
		a, err := r.Get(p)
		require.NoError(t, err)
		assert.Equal(t, p, a.Platform())
	}

	_, err := r.Get(domain.Platform("tiktok"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
}
