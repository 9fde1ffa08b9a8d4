package provider

import (
	"fmt"
	"net/http"

	"github.com/prperemyshlev/adlink-service/internal/domain"
)

// Registry holds the adapter of every supported platform
type Registry struct {
	adapters map[domain.Platform]Adapter
}

// NewRegistry registers the given adapters by platform
func NewRegistry(list ...Adapter) *Registry {
	m := make(map[domain.Platform]Adapter, len(list))
	for _, a := range list {
		m[a.Platform()] = a
	}
	return &Registry{adapters: m}
}

// NewDefaultRegistry builds production adapters for all platforms sharing one HTTP client
func NewDefaultRegistry(client *http.Client, microsoftTenant string) *Registry {
	return NewRegistry(
		NewGoogleAdapter(client),
		NewMetaAdapter(client),
		NewLinkedInAdapter(client),
		NewMicrosoftAdapter(client, microsoftTenant),
	)
}

// Get returns the adapter for a platform
func (r *Registry) Get(platform domain.Platform) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter for %q: %w", platform, domain.ErrUnsupportedPlatform)
	}
	return a, nil
}
