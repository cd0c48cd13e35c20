package databases

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewContentItemStore returns a Postgres-backed store, or an in-memory one
// when pool is nil. The (source_id, url) unique constraint is the
// delta-dedup key: Upsert reports whether the row is new.
func NewContentItemStore(pool *pgxpool.Pool) persistence.ContentItemStore {
	if pool == nil {
		return newMemoryContentItemStore()
	}
	return &pgContentItemStore{pool: pool}
}

type pgContentItemStore struct {
	pool *pgxpool.Pool
}

func (s *pgContentItemStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS content_items (
    id UUID PRIMARY KEY,
    source_id UUID NOT NULL,
    user_id UUID NOT NULL,
    content_type TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL,
    published_at TIMESTAMPTZ,
    metadata JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (source_id, url)
);
CREATE INDEX IF NOT EXISTS content_items_user_idx ON content_items(user_id, created_at DESC);
`)
	return err
}

func (s *pgContentItemStore) Upsert(ctx context.Context, item persistence.ContentItem) (persistence.ContentItem, bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(nonNilMap(item.Metadata))
	if err != nil {
		return persistence.ContentItem{}, false, err
	}
	var returnedID string
	err = s.pool.QueryRow(ctx, `
INSERT INTO content_items (id, source_id, user_id, content_type, title, content, url, published_at, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (source_id, url) DO NOTHING
RETURNING id`, item.ID, item.SourceID, item.UserID, item.ContentType, item.Title, item.Content,
		item.URL, item.PublishedAt, metaJSON, item.CreatedAt).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := s.getByURL(ctx, item.SourceID, item.URL)
		if getErr != nil {
			return persistence.ContentItem{}, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return persistence.ContentItem{}, false, err
	}
	item.ID = returnedID
	return item, true, nil
}

func (s *pgContentItemStore) getByURL(ctx context.Context, sourceID, url string) (persistence.ContentItem, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, source_id, user_id, content_type, title, content, url, published_at, metadata, created_at
FROM content_items WHERE source_id=$1 AND url=$2`, sourceID, url)
	return scanContentItem(row)
}

func (s *pgContentItemStore) Get(ctx context.Context, itemID string) (persistence.ContentItem, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, source_id, user_id, content_type, title, content, url, published_at, metadata, created_at
FROM content_items WHERE id=$1`, itemID)
	item, err := scanContentItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ContentItem{}, persistence.ErrNotFound
	}
	return item, err
}

func (s *pgContentItemStore) ListBySource(ctx context.Context, sourceID string, since *time.Time) ([]persistence.ContentItem, error) {
	var rows pgx.Rows
	var err error
	if since != nil {
		rows, err = s.pool.Query(ctx, `
SELECT id, source_id, user_id, content_type, title, content, url, published_at, metadata, created_at
FROM content_items WHERE source_id=$1 AND created_at >= $2 ORDER BY created_at ASC`, sourceID, *since)
	} else {
		rows, err = s.pool.Query(ctx, `
SELECT id, source_id, user_id, content_type, title, content, url, published_at, metadata, created_at
FROM content_items WHERE source_id=$1 ORDER BY created_at ASC`, sourceID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContentItemRows(rows)
}

func (s *pgContentItemStore) ListByUser(ctx context.Context, userID string, since *time.Time) ([]persistence.ContentItem, error) {
	var rows pgx.Rows
	var err error
	if since != nil {
		rows, err = s.pool.Query(ctx, `
SELECT id, source_id, user_id, content_type, title, content, url, published_at, metadata, created_at
FROM content_items WHERE user_id=$1 AND created_at >= $2 ORDER BY created_at ASC`, userID, *since)
	} else {
		rows, err = s.pool.Query(ctx, `
SELECT id, source_id, user_id, content_type, title, content, url, published_at, metadata, created_at
FROM content_items WHERE user_id=$1 ORDER BY created_at ASC`, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContentItemRows(rows)
}

func scanContentItem(row pgx.Row) (persistence.ContentItem, error) {
	var item persistence.ContentItem
	var metaJSON []byte
	err := row.Scan(&item.ID, &item.SourceID, &item.UserID, &item.ContentType, &item.Title, &item.Content,
		&item.URL, &item.PublishedAt, &metaJSON, &item.CreatedAt)
	if err != nil {
		return persistence.ContentItem{}, err
	}
	_ = json.Unmarshal(metaJSON, &item.Metadata)
	return item, nil
}

func scanContentItemRows(rows pgx.Rows) ([]persistence.ContentItem, error) {
	out := []persistence.ContentItem{}
	for rows.Next() {
		var item persistence.ContentItem
		var metaJSON []byte
		if err := rows.Scan(&item.ID, &item.SourceID, &item.UserID, &item.ContentType, &item.Title, &item.Content,
			&item.URL, &item.PublishedAt, &metaJSON, &item.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(metaJSON, &item.Metadata)
		out = append(out, item)
	}
	return out, rows.Err()
}

// --- Memory ---

type memContentItemStore struct {
	mu      sync.Mutex
	byID    map[string]persistence.ContentItem
	byDedup map[string]string // "sourceID|url" -> itemID
}

func newMemoryContentItemStore() *memContentItemStore {
	return &memContentItemStore{
		byID:    make(map[string]persistence.ContentItem),
		byDedup: make(map[string]string),
	}
}

func (s *memContentItemStore) Init(ctx context.Context) error { return nil }

func (s *memContentItemStore) Upsert(ctx context.Context, item persistence.ContentItem) (persistence.ContentItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := item.SourceID + "|" + item.URL
	if existingID, ok := s.byDedup[key]; ok {
		return s.byID[existingID], false, nil
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.byID[item.ID] = item
	s.byDedup[key] = item.ID
	return item, true, nil
}

func (s *memContentItemStore) Get(ctx context.Context, itemID string) (persistence.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byID[itemID]
	if !ok {
		return persistence.ContentItem{}, persistence.ErrNotFound
	}
	return item, nil
}

func (s *memContentItemStore) ListBySource(ctx context.Context, sourceID string, since *time.Time) ([]persistence.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.ContentItem{}
	for _, item := range s.byID {
		if item.SourceID != sourceID {
			continue
		}
		if since != nil && item.CreatedAt.Before(*since) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *memContentItemStore) ListByUser(ctx context.Context, userID string, since *time.Time) ([]persistence.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.ContentItem{}
	for _, item := range s.byID {
		if item.UserID != userID {
			continue
		}
		if since != nil && item.CreatedAt.Before(*since) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
