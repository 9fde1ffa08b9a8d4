package linkclient

import (
	"context"
	"sync"
	"time"
)

// MarkerTTL matches the server-side lifetime of a flow state
const MarkerTTL = 10 * time.Minute

// Marker remembers locally that a linking flow was started. It is advisory:
// the state parameter round-tripped by the provider is what the server trusts.
type Marker struct {
	Platform    string    `json:"platform"`
	UserID      string    `json:"userId"`
	StartedAt   time.Time `json:"startedAt"`
	RedirectURI string    `json:"redirectUri"`
}

// Expired reports whether the marker is older than MarkerTTL
func (m Marker) Expired(now time.Time) bool {
	return now.Sub(m.StartedAt) > MarkerTTL
}

// MarkerStore keeps at most one marker per session
type MarkerStore interface {
	Save(ctx context.Context, marker Marker) error
	// Load returns nil when no marker is stored
	Load(ctx context.Context) (*Marker, error)
	Clear(ctx context.Context) error
}

// MemoryMarkerStore is an in-process MarkerStore
type MemoryMarkerStore struct {
	mu     sync.Mutex
	marker *Marker
}

func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{}
}

func (s *MemoryMarkerStore) Save(_ context.Context, marker Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = &marker
	return nil
}

func (s *MemoryMarkerStore) Load(_ context.Context) (*Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marker == nil {
		return nil, nil
	}
	m := *s.marker
	return &m, nil
}

func (s *MemoryMarkerStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = nil
	return nil
}
