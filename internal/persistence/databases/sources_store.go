package databases

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewSourceStore returns a Postgres-backed source store, or an in-memory
// one when pool is nil.
func NewSourceStore(pool *pgxpool.Pool) persistence.SourceStore {
	if pool == nil {
		return newMemorySourceStore()
	}
	return &pgSourceStore{pool: pool}
}

// --- Postgres ---

type pgSourceStore struct {
	pool *pgxpool.Pool
}

func (s *pgSourceStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS sources (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    config JSONB NOT NULL DEFAULT '{}',
    credentials JSONB NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'pending',
    error_message TEXT NOT NULL DEFAULT '',
    last_crawled_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS sources_user_idx ON sources(user_id);
`)
	return err
}

func (s *pgSourceStore) Create(ctx context.Context, src persistence.Source) (persistence.Source, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.Status == "" {
		src.Status = persistence.SourceStatusPending
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	cfgJSON, err := json.Marshal(nonNilMap(src.Config))
	if err != nil {
		return persistence.Source{}, err
	}
	credJSON, err := json.Marshal(nonNilStringMap(src.Credentials))
	if err != nil {
		return persistence.Source{}, err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO sources (id, user_id, kind, name, url, config, credentials, status, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		src.ID, src.UserID, src.Kind, src.Name, src.URL, cfgJSON, credJSON, src.Status, src.ErrorMessage, src.CreatedAt)
	if err != nil {
		return persistence.Source{}, err
	}
	return src, nil
}

func (s *pgSourceStore) Get(ctx context.Context, userID, sourceID string) (persistence.Source, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, user_id, kind, name, url, config, credentials, status, error_message, last_crawled_at, created_at
FROM sources WHERE id = $1`, sourceID)
	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.Source{}, persistence.ErrNotFound
		}
		return persistence.Source{}, err
	}
	if src.UserID != userID {
		return persistence.Source{}, persistence.ErrForbidden
	}
	return src, nil
}

func (s *pgSourceStore) ListByUser(ctx context.Context, userID string) ([]persistence.Source, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, kind, name, url, config, credentials, status, error_message, last_crawled_at, created_at
FROM sources WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []persistence.Source{}
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *pgSourceStore) ListUsersWithActiveSources(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT user_id FROM sources WHERE status=$1 ORDER BY user_id`, persistence.SourceStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

func (s *pgSourceStore) Update(ctx context.Context, src persistence.Source) (persistence.Source, error) {
	cfgJSON, err := json.Marshal(nonNilMap(src.Config))
	if err != nil {
		return persistence.Source{}, err
	}
	credJSON, err := json.Marshal(nonNilStringMap(src.Credentials))
	if err != nil {
		return persistence.Source{}, err
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE sources SET name=$1, url=$2, config=$3, credentials=$4 WHERE id=$5 AND user_id=$6`,
		src.Name, src.URL, cfgJSON, credJSON, src.ID, src.UserID)
	if err != nil {
		return persistence.Source{}, err
	}
	if tag.RowsAffected() == 0 {
		return persistence.Source{}, persistence.ErrNotFound
	}
	return s.Get(ctx, src.UserID, src.ID)
}

func (s *pgSourceStore) SetStatus(ctx context.Context, sourceID, status, errorMessage string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE sources SET status=$1, error_message=$2 WHERE id=$3`, status, errorMessage, sourceID)
	return err
}

func (s *pgSourceStore) SetLastCrawledAt(ctx context.Context, sourceID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE sources SET last_crawled_at=$1 WHERE id=$2`, at, sourceID)
	return err
}

func (s *pgSourceStore) Delete(ctx context.Context, userID, sourceID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sources WHERE id=$1 AND user_id=$2`, sourceID, userID)
	return err
}

func scanSource(row pgx.Row) (persistence.Source, error) {
	var src persistence.Source
	var cfgJSON, credJSON []byte
	err := row.Scan(&src.ID, &src.UserID, &src.Kind, &src.Name, &src.URL, &cfgJSON, &credJSON,
		&src.Status, &src.ErrorMessage, &src.LastCrawledAt, &src.CreatedAt)
	if err != nil {
		return persistence.Source{}, err
	}
	_ = json.Unmarshal(cfgJSON, &src.Config)
	_ = json.Unmarshal(credJSON, &src.Credentials)
	return src, nil
}

func scanSourceRows(rows pgx.Rows) (persistence.Source, error) {
	var src persistence.Source
	var cfgJSON, credJSON []byte
	err := rows.Scan(&src.ID, &src.UserID, &src.Kind, &src.Name, &src.URL, &cfgJSON, &credJSON,
		&src.Status, &src.ErrorMessage, &src.LastCrawledAt, &src.CreatedAt)
	if err != nil {
		return persistence.Source{}, err
	}
	_ = json.Unmarshal(cfgJSON, &src.Config)
	_ = json.Unmarshal(credJSON, &src.Credentials)
	return src, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilStringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// --- Memory ---

type memSourceStore struct {
	mu      sync.Mutex
	sources map[string]persistence.Source
}

func newMemorySourceStore() *memSourceStore {
	return &memSourceStore{sources: make(map[string]persistence.Source)}
}

func (s *memSourceStore) Init(ctx context.Context) error { return nil }

func (s *memSourceStore) Create(ctx context.Context, src persistence.Source) (persistence.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.Status == "" {
		src.Status = persistence.SourceStatusPending
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	s.sources[src.ID] = src
	return src, nil
}

func (s *memSourceStore) Get(ctx context.Context, userID, sourceID string) (persistence.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sourceID]
	if !ok {
		return persistence.Source{}, persistence.ErrNotFound
	}
	if src.UserID != userID {
		return persistence.Source{}, persistence.ErrForbidden
	}
	return src, nil
}

func (s *memSourceStore) ListByUser(ctx context.Context, userID string) ([]persistence.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.Source{}
	for _, src := range s.sources {
		if src.UserID == userID {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *memSourceStore) ListUsersWithActiveSources(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, src := range s.sources {
		if src.Status != persistence.SourceStatusActive || seen[src.UserID] {
			continue
		}
		seen[src.UserID] = true
		out = append(out, src.UserID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memSourceStore) Update(ctx context.Context, src persistence.Source) (persistence.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sources[src.ID]
	if !ok {
		return persistence.Source{}, persistence.ErrNotFound
	}
	if existing.UserID != src.UserID {
		return persistence.Source{}, persistence.ErrForbidden
	}
	existing.Name = src.Name
	existing.URL = src.URL
	existing.Config = src.Config
	existing.Credentials = src.Credentials
	s.sources[src.ID] = existing
	return existing, nil
}

func (s *memSourceStore) SetStatus(ctx context.Context, sourceID, status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sourceID]
	if !ok {
		return persistence.ErrNotFound
	}
	src.Status = status
	src.ErrorMessage = errorMessage
	s.sources[sourceID] = src
	return nil
}

func (s *memSourceStore) SetLastCrawledAt(ctx context.Context, sourceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[sourceID]
	if !ok {
		return persistence.ErrNotFound
	}
	src.LastCrawledAt = &at
	s.sources[sourceID] = src
	return nil
}

func (s *memSourceStore) Delete(ctx context.Context, userID, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, sourceID)
	return nil
}
