package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
)

const microsoftVerifyURL = "https://clientcenter.api.bingads.microsoft.com/CustomerManagement/v13/User/Query"

var microsoftScopes = []string{
	"https://ads.microsoft.com/msads.manage",
	"offline_access",
	"openid",
	"profile",
}

// MicrosoftAdapter links Microsoft Advertising accounts through the Microsoft
// identity platform. The identity platform has no revocation endpoint, so
// MicrosoftAdapter does not implement Revoker.
type MicrosoftAdapter struct {
	oauthBase
}

func NewMicrosoftAdapter(client *http.Client, tenant string, opts ...Option) *MicrosoftAdapter {
	if tenant == "" {
		tenant = "common"
	}
	base := "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0"
	endpoints := Endpoints{
		AuthURL:   base + "/authorize",
		TokenURL:  base + "/token",
		VerifyURL: microsoftVerifyURL,
	}

	a := &MicrosoftAdapter{oauthBase: newOAuthBase(domain.PlatformMicrosoft, client, endpoints, microsoftScopes, time.Hour)}
	a.apply(opts)
	return a
}

// VerifyAccess resolves the Microsoft Advertising user behind the token; a login
// without an Advertising account is rejected by the Customer Management API.
func (a *MicrosoftAdapter) VerifyAccess(ctx context.Context, accessToken string, creds domain.PlatformCredentials) domain.VerificationMetadata {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoints.VerifyURL, strings.NewReader(`{"UserId":null}`))
	if err != nil {
		return failedVerification(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("DeveloperToken", creds.DeveloperToken)
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		User *struct {
			ID         json.Number `json:"Id"`
			CustomerID json.Number `json:"CustomerId"`
		} `json:"User"`
		CustomerRoles []struct {
			CustomerID json.Number `json:"CustomerId"`
			AccountIDs []int64     `json:"AccountIds"`
		} `json:"CustomerRoles"`
	}
	if err := a.do(req, &body); err != nil {
		return failedVerification(err)
	}

	if body.User == nil || body.User.ID == "" {
		return domain.VerificationMetadata{Error: "no Microsoft Advertising user is associated with this login"}
	}

	accounts := 0
	for _, role := range body.CustomerRoles {
		accounts += len(role.AccountIDs)
	}

	meta := domain.VerificationMetadata{
		Verified:     true,
		AccountID:    body.User.CustomerID.String(),
		AccountCount: accountCount(accounts),
	}
	if meta.AccountID == "" && len(body.CustomerRoles) > 0 {
		meta.AccountID = body.CustomerRoles[0].CustomerID.String()
	}
	if meta.AccountID == "" {
		meta.AccountID = body.User.ID.String()
	}
	return meta
}
