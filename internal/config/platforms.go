package config

import (
	"fmt"

	"github.com/prperemyshlev/adlink-service/internal/domain"
)

// PlatformsConfig holds operator secrets for every advertising platform.
// All fields are optional at load time; a platform without credentials
// fails per request with a domain.ConfigurationError.
type PlatformsConfig struct {
	Google    GoogleAdsConfig    `env:",prefix=GOOGLE_ADS_"`
	Meta      MetaConfig         `env:",prefix=META_"`
	LinkedIn  LinkedInConfig     `env:",prefix=LINKEDIN_"`
	Microsoft MicrosoftAdsConfig `env:",prefix=MICROSOFT_ADS_"`
}

type GoogleAdsConfig struct {
	ClientID       string `env:"CLIENT_ID"`
	ClientSecret   string `env:"CLIENT_SECRET"`
	DeveloperToken string `env:"DEVELOPER_TOKEN"`
}

type MetaConfig struct {
	AppID     string `env:"APP_ID"`
	AppSecret string `env:"APP_SECRET"`
}

type LinkedInConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

type MicrosoftAdsConfig struct {
	ClientID       string `env:"CLIENT_ID"`
	ClientSecret   string `env:"CLIENT_SECRET"`
	DeveloperToken string `env:"DEVELOPER_TOKEN"`
	Tenant         string `env:"TENANT,default=common"`
}

type requiredVar struct {
	name  string
	value string
}

// Credentials returns the secrets for a platform or a *domain.ConfigurationError
// naming every missing environment variable.
func (c PlatformsConfig) Credentials(platform domain.Platform) (domain.PlatformCredentials, error) {
	var (
		creds    domain.PlatformCredentials
		required []requiredVar
	)

	switch platform {
	case domain.PlatformGoogle:
		creds = domain.PlatformCredentials{
			ClientID:       c.Google.ClientID,
			ClientSecret:   c.Google.ClientSecret,
			DeveloperToken: c.Google.DeveloperToken,
		}
		required = []requiredVar{
			{"GOOGLE_ADS_CLIENT_ID", c.Google.ClientID},
			{"GOOGLE_ADS_CLIENT_SECRET", c.Google.ClientSecret},
			{"GOOGLE_ADS_DEVELOPER_TOKEN", c.Google.DeveloperToken},
		}
	case domain.PlatformMeta:
		creds = domain.PlatformCredentials{
			ClientID:     c.Meta.AppID,
			ClientSecret: c.Meta.AppSecret,
		}
		required = []requiredVar{
			{"META_APP_ID", c.Meta.AppID},
			{"META_APP_SECRET", c.Meta.AppSecret},
		}
	case domain.PlatformLinkedIn:
		creds = domain.PlatformCredentials{
			ClientID:     c.LinkedIn.ClientID,
			ClientSecret: c.LinkedIn.ClientSecret,
		}
		required = []requiredVar{
			{"LINKEDIN_CLIENT_ID", c.LinkedIn.ClientID},
			{"LINKEDIN_CLIENT_SECRET", c.LinkedIn.ClientSecret},
		}
	case domain.PlatformMicrosoft:
		creds = domain.PlatformCredentials{
			ClientID:       c.Microsoft.ClientID,
			ClientSecret:   c.Microsoft.ClientSecret,
			DeveloperToken: c.Microsoft.DeveloperToken,
		}
		required = []requiredVar{
			{"MICROSOFT_ADS_CLIENT_ID", c.Microsoft.ClientID},
			{"MICROSOFT_ADS_CLIENT_SECRET", c.Microsoft.ClientSecret},
			{"MICROSOFT_ADS_DEVELOPER_TOKEN", c.Microsoft.DeveloperToken},
		}
	default:
		return domain.PlatformCredentials{}, fmt.Errorf("%q: %w", platform, domain.ErrUnsupportedPlatform)
	}

	var missing []string
	for _, v := range required {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return domain.PlatformCredentials{}, &domain.ConfigurationError{Platform: platform, Missing: missing}
	}

	return creds, nil
}

// Unconfigured returns the configuration errors of every platform lacking secrets
func (c PlatformsConfig) Unconfigured() []*domain.ConfigurationError {
	var out []*domain.ConfigurationError
	for _, p := range domain.Platforms() {
		if _, err := c.Credentials(p); err != nil {
			if cfgErr, ok := err.(*domain.ConfigurationError); ok {
				out = append(out, cfgErr)
			}
		}
	}
	return out
}
