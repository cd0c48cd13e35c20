package preferences

import (
	"context"
	"sync"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

const defaultCacheTTL = 30 * time.Second

type cachedDoc struct {
	doc       map[string]any
	expiresAt time.Time
}

// Resolver resolves a user's effective preferences document — the fixed
// defaults deep-merged with whatever partial override the user has saved —
// and caches the merged result per user for a short TTL, since every C9
// draft run and every C4 gateway call through C8/C9 reads it.
type Resolver struct {
	store persistence.PreferencesStore
	ttl   time.Duration
	cache sync.Map // userID -> cachedDoc
}

func NewResolver(store persistence.PreferencesStore) *Resolver {
	return &Resolver{store: store, ttl: defaultCacheTTL}
}

// Get returns the effective preferences document for userID: defaults
// deep-merged with the saved override, or pure defaults if none was ever
// saved.
func (r *Resolver) Get(ctx context.Context, userID string) (map[string]any, error) {
	if v, ok := r.cache.Load(userID); ok {
		cd := v.(cachedDoc)
		if time.Now().Before(cd.expiresAt) {
			return cd.doc, nil
		}
		r.cache.Delete(userID)
	}

	override, err := r.store.Get(ctx, userID)
	if err != nil && err != persistence.ErrNotFound {
		return nil, err
	}
	merged := Defaults()
	if override != nil {
		merged = deepMerge(merged, override)
	}
	r.cache.Store(userID, cachedDoc{doc: merged, expiresAt: time.Now().Add(r.ttl)})
	return merged, nil
}

// Patch deep-merges partial into the user's saved override (not the
// resolved document) and persists it, invalidating the cache synchronously
// so the next Get reflects the change immediately.
func (r *Resolver) Patch(ctx context.Context, userID string, partial map[string]any) (map[string]any, error) {
	existing, err := r.store.Get(ctx, userID)
	if err != nil && err != persistence.ErrNotFound {
		return nil, err
	}
	if existing == nil {
		existing = map[string]any{}
	}
	updated := deepMerge(existing, partial)
	if err := r.store.Put(ctx, userID, updated); err != nil {
		return nil, err
	}
	r.cache.Delete(userID)
	return r.Get(ctx, userID)
}

// Reset discards the user's saved override entirely, reverting them to
// pure defaults.
func (r *Resolver) Reset(ctx context.Context, userID string) (map[string]any, error) {
	if err := r.store.Delete(ctx, userID); err != nil {
		return nil, err
	}
	r.cache.Delete(userID)
	return r.Get(ctx, userID)
}

// InitializeDefaults saves the full defaults document as a new user's
// override, per the "new users are initialized with the full defaults
// document" requirement — distinct from never having saved anything, so a
// later change to Defaults() does not silently alter an existing user.
func (r *Resolver) InitializeDefaults(ctx context.Context, userID string) error {
	if err := r.store.Put(ctx, userID, Defaults()); err != nil {
		return err
	}
	r.cache.Delete(userID)
	return nil
}
