// Package connectors implements the source connector registry: one
// adapter per provider kind (RSS/Atom, YouTube, Reddit, GitHub, Twitter/X),
// each normalizing provider-specific pagination and payloads into
// persistence.ContentItem rows. The registry is the only part of the
// process that knows provider specifics; everything downstream of fetch()
// deals only in ContentItem.
package connectors

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/observability"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// Connector is the capability set every source kind implements. A single
// instance is bound to one source's config/credentials at construction
// time via a Factory.
type Connector interface {
	Kind() string
	RequiredCredentials() []string
	RequiredConfig() []string
	// Validate checks credentials/config against the provider and may
	// normalize cfg in place (e.g. resolving a handle to a channel id).
	// The caller persists the source if Validate mutated the config.
	Validate(ctx context.Context) error
	// Fetch returns items with PublishedAt strictly after since when since
	// is non-nil.
	Fetch(ctx context.Context, since *time.Time) ([]persistence.ContentItem, error)
}

// Factory builds a Connector bound to one source's id, config, and
// credentials.
type Factory func(sourceID string, config map[string]any, credentials map[string]string) Connector

// Registry is a process-wide, read-only-after-init map from kind to
// factory. It is the only global mutable state in the connector layer, and
// it is only written during startup registration.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with every built-in
// connector kind.
func NewRegistry(httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("rss", newRSSFactory(httpClient))
	r.Register("youtube", newYouTubeFactory(httpClient))
	r.Register("reddit", newRedditFactory(httpClient))
	r.Register("github", newGitHubFactory(httpClient))
	r.Register("twitter", newTwitterFactory(httpClient))
	return r
}

// Register adds or replaces the factory for a kind. Exposed so tests can
// swap in fakes without touching the built-in set.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Kinds returns every registered kind, for UI introspection.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	return kinds
}

// Build resolves a connector for a source, returning ok=false when kind is
// unregistered.
func (r *Registry) Build(kind, sourceID string, config map[string]any, credentials map[string]string) (Connector, bool) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(sourceID, config, credentials), true
}
