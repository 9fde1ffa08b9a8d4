package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
)

const linkedInAPIVersion = "202409"

var linkedInEndpoints = Endpoints{
	AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
	TokenURL:  "https://www.linkedin.com/oauth/v2/accessToken",
	VerifyURL: "https://api.linkedin.com/rest/adAccounts",
	RevokeURL: "https://www.linkedin.com/oauth/v2/revoke",
}

var linkedInScopes = []string{"r_ads", "rw_ads", "r_basicprofile"}

// LinkedInAdapter links LinkedIn Campaign Manager ad accounts
type LinkedInAdapter struct {
	oauthBase
}

func NewLinkedInAdapter(client *http.Client, opts ...Option) *LinkedInAdapter {
	a := &LinkedInAdapter{oauthBase: newOAuthBase(domain.PlatformLinkedIn, client, linkedInEndpoints, linkedInScopes, 60*24*time.Hour)}
	a.apply(opts)
	return a
}

func (a *LinkedInAdapter) VerifyAccess(ctx context.Context, accessToken string, _ domain.PlatformCredentials) domain.VerificationMetadata {
	u, err := url.Parse(a.endpoints.VerifyURL)
	if err != nil {
		return failedVerification(err)
	}
	q := u.Query()
	q.Set("q", "search")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return failedVerification(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("LinkedIn-Version", linkedInAPIVersion)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	var body struct {
		Elements []struct {
			ID json.Number `json:"id"`
		} `json:"elements"`
	}
	if err := a.do(req, &body); err != nil {
		return failedVerification(err)
	}

	meta := domain.VerificationMetadata{AccountCount: accountCount(len(body.Elements))}
	if len(body.Elements) == 0 {
		meta.Error = "no LinkedIn ad accounts are accessible with this login"
		return meta
	}

	meta.Verified = true
	meta.AccountID = body.Elements[0].ID.String()
	return meta
}

func (a *LinkedInAdapter) RevokeToken(ctx context.Context, token string, creds domain.PlatformCredentials) error {
	form := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"token":         {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoints.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return a.do(req, nil)
}
