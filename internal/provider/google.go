package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"golang.org/x/oauth2"
)

var googleEndpoints = Endpoints{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	VerifyURL: "https://googleads.googleapis.com/v20/customers:listAccessibleCustomers",
	RevokeURL: "https://oauth2.googleapis.com/revoke",
}

var googleScopes = []string{
	"https://www.googleapis.com/auth/adwords",
	"openid",
	"email",
}

// GoogleAdapter links Google Ads accounts. Offline access with a forced consent
// prompt is requested so a refresh token is issued on every link.
type GoogleAdapter struct {
	oauthBase
}

func NewGoogleAdapter(client *http.Client, opts ...Option) *GoogleAdapter {
	a := &GoogleAdapter{oauthBase: newOAuthBase(domain.PlatformGoogle, client, googleEndpoints, googleScopes, time.Hour)}
	a.authParams = []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	}
	a.apply(opts)
	return a
}

// VerifyAccess lists the Ads customers reachable with the token. Google grants
// the login even when the user has no Ads account, so an empty list is unverified.
func (a *GoogleAdapter) VerifyAccess(ctx context.Context, accessToken string, creds domain.PlatformCredentials) domain.VerificationMetadata {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoints.VerifyURL, nil)
	if err != nil {
		return failedVerification(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("developer-token", creds.DeveloperToken)

	var body struct {
		ResourceNames []string `json:"resourceNames"`
	}
	if err := a.do(req, &body); err != nil {
		return failedVerification(err)
	}

	meta := domain.VerificationMetadata{AccountCount: accountCount(len(body.ResourceNames))}
	if len(body.ResourceNames) == 0 {
		meta.Error = "no Google Ads accounts are accessible with this login"
		return meta
	}

	meta.Verified = true
	meta.AccountID = strings.TrimPrefix(body.ResourceNames[0], "customers/")
	return meta
}

func (a *GoogleAdapter) RevokeToken(ctx context.Context, token string, _ domain.PlatformCredentials) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoints.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return a.do(req, nil)
}
