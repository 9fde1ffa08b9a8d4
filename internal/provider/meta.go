package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
)

var metaEndpoints = Endpoints{
	AuthURL:   "https://www.facebook.com/v19.0/dialog/oauth",
	TokenURL:  "https://graph.facebook.com/v19.0/oauth/access_token",
	VerifyURL: "https://graph.facebook.com/v19.0/me/adaccounts",
	RevokeURL: "https://graph.facebook.com/v19.0/me/permissions",
}

// Meta expects a comma separated scope list
var metaScopes = []string{"ads_management,ads_read,business_management"}

// MetaAdapter links Meta (Facebook/Instagram) ad accounts. Meta never returns a
// refresh token on this grant; tokens without expires_in are long-lived (60 days).
type MetaAdapter struct {
	oauthBase
}

func NewMetaAdapter(client *http.Client, opts ...Option) *MetaAdapter {
	a := &MetaAdapter{oauthBase: newOAuthBase(domain.PlatformMeta, client, metaEndpoints, metaScopes, 60*24*time.Hour)}
	a.apply(opts)
	return a
}

func (a *MetaAdapter) VerifyAccess(ctx context.Context, accessToken string, _ domain.PlatformCredentials) domain.VerificationMetadata {
	u, err := url.Parse(a.endpoints.VerifyURL)
	if err != nil {
		return failedVerification(err)
	}
	q := u.Query()
	q.Set("fields", "account_id,name")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return failedVerification(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var body struct {
		Data []struct {
			ID        string `json:"id"`
			AccountID string `json:"account_id"`
		} `json:"data"`
	}
	if err := a.do(req, &body); err != nil {
		return failedVerification(err)
	}

	meta := domain.VerificationMetadata{AccountCount: accountCount(len(body.Data))}
	if len(body.Data) == 0 {
		meta.Error = "no Meta ad accounts are accessible with this login"
		return meta
	}

	meta.Verified = true
	meta.AccountID = body.Data[0].AccountID
	if meta.AccountID == "" {
		meta.AccountID = strings.TrimPrefix(body.Data[0].ID, "act_")
	}
	return meta
}

// RevokeToken removes every permission the app was granted
func (a *MetaAdapter) RevokeToken(ctx context.Context, token string, _ domain.PlatformCredentials) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.endpoints.RevokeURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return a.do(req, nil)
}
