package databases

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewPreferencesStore returns a Postgres-backed preferences store, or an
// in-memory one when pool is nil.
func NewPreferencesStore(pool *pgxpool.Pool) persistence.PreferencesStore {
	if pool == nil {
		return newMemoryPreferencesStore()
	}
	return &pgPreferencesStore{pool: pool}
}

// --- Postgres ---

type pgPreferencesStore struct {
	pool *pgxpool.Pool
}

func (s *pgPreferencesStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS user_preferences (
    user_id UUID PRIMARY KEY,
    document JSONB NOT NULL DEFAULT '{}'
);
`)
	return err
}

func (s *pgPreferencesStore) Get(ctx context.Context, userID string) (map[string]any, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM user_preferences WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *pgPreferencesStore) Put(ctx context.Context, userID string, document map[string]any) error {
	raw, err := json.Marshal(document)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO user_preferences (user_id, document) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET document = EXCLUDED.document`, userID, raw)
	return err
}

func (s *pgPreferencesStore) Delete(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_preferences WHERE user_id = $1`, userID)
	return err
}

// --- Memory ---

type memPreferencesStore struct {
	mu   sync.Mutex
	docs map[string]map[string]any
}

func newMemoryPreferencesStore() *memPreferencesStore {
	return &memPreferencesStore{docs: make(map[string]map[string]any)}
}

func (s *memPreferencesStore) Init(ctx context.Context) error { return nil }

func (s *memPreferencesStore) Get(ctx context.Context, userID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *memPreferencesStore) Put(ctx context.Context, userID string, document map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = cloneDoc(document)
	return nil
}

func (s *memPreferencesStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, userID)
	return nil
}

func cloneDoc(doc map[string]any) map[string]any {
	raw, err := json.Marshal(doc)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
