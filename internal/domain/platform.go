package domain

import (
	"fmt"
	"strings"
)

// Platform identifies an advertising provider an account can be linked to
type Platform string

const (
	PlatformGoogle    Platform = "google"
	PlatformMeta      Platform = "meta"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformMicrosoft Platform = "microsoft"
)

// Platforms returns every supported platform in a stable order
func Platforms() []Platform {
	return []Platform{PlatformGoogle, PlatformMeta, PlatformLinkedIn, PlatformMicrosoft}
}

// Valid reports whether p is one of the supported platforms
func (p Platform) Valid() bool {
	switch p {
	case PlatformGoogle, PlatformMeta, PlatformLinkedIn, PlatformMicrosoft:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// ParsePlatform converts user input into a Platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrUnsupportedPlatform)
	}
	return p, nil
}

// PlatformCredentials are the operator-supplied secrets for one platform
type PlatformCredentials struct {
	ClientID       string
	ClientSecret   string
	DeveloperToken string
}
