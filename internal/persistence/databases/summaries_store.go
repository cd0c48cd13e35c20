package databases

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewSummaryStore returns a Postgres-backed store, or an in-memory one
// when pool is nil. Upsert overwrites any existing row for the same
// (content_id, summary_type), matching the idempotence invariant.
func NewSummaryStore(pool *pgxpool.Pool) persistence.SummaryStore {
	if pool == nil {
		return newMemorySummaryStore()
	}
	return &pgSummaryStore{pool: pool}
}

type pgSummaryStore struct {
	pool *pgxpool.Pool
}

func (s *pgSummaryStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS content_summaries (
    content_id UUID NOT NULL,
    summary_type TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    key_points TEXT[] NOT NULL DEFAULT '{}',
    summary TEXT NOT NULL DEFAULT '',
    topics TEXT[] NOT NULL DEFAULT '{}',
    sentiment TEXT NOT NULL DEFAULT '',
    relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    metadata JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (content_id, summary_type)
);
`)
	return err
}

func (s *pgSummaryStore) Get(ctx context.Context, contentID, summaryType string) (persistence.ContentSummary, error) {
	row := s.pool.QueryRow(ctx, `
SELECT content_id, summary_type, title, key_points, summary, topics, sentiment, relevance_score, metadata, updated_at
FROM content_summaries WHERE content_id=$1 AND summary_type=$2`, contentID, summaryType)
	var cs persistence.ContentSummary
	var metaJSON []byte
	err := row.Scan(&cs.ContentID, &cs.SummaryType, &cs.Title, &cs.KeyPoints, &cs.Summary,
		&cs.Topics, &cs.Sentiment, &cs.RelevanceScore, &metaJSON, &cs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ContentSummary{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.ContentSummary{}, err
	}
	_ = json.Unmarshal(metaJSON, &cs.Metadata)
	return cs, nil
}

func (s *pgSummaryStore) Upsert(ctx context.Context, cs persistence.ContentSummary) (persistence.ContentSummary, error) {
	cs.UpdatedAt = time.Now().UTC()
	metaJSON, err := json.Marshal(nonNilMap(cs.Metadata))
	if err != nil {
		return persistence.ContentSummary{}, err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO content_summaries (content_id, summary_type, title, key_points, summary, topics, sentiment, relevance_score, metadata, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (content_id, summary_type) DO UPDATE SET
    title = EXCLUDED.title,
    key_points = EXCLUDED.key_points,
    summary = EXCLUDED.summary,
    topics = EXCLUDED.topics,
    sentiment = EXCLUDED.sentiment,
    relevance_score = EXCLUDED.relevance_score,
    metadata = EXCLUDED.metadata,
    updated_at = EXCLUDED.updated_at`,
		cs.ContentID, cs.SummaryType, cs.Title, cs.KeyPoints, cs.Summary,
		cs.Topics, cs.Sentiment, cs.RelevanceScore, metaJSON, cs.UpdatedAt)
	if err != nil {
		return persistence.ContentSummary{}, err
	}
	return cs, nil
}

// --- Memory ---

type memSummaryStore struct {
	mu       sync.Mutex
	byKey    map[string]persistence.ContentSummary
}

func newMemorySummaryStore() *memSummaryStore {
	return &memSummaryStore{byKey: make(map[string]persistence.ContentSummary)}
}

func (s *memSummaryStore) Init(ctx context.Context) error { return nil }

func summaryKey(contentID, summaryType string) string { return contentID + "|" + summaryType }

func (s *memSummaryStore) Get(ctx context.Context, contentID, summaryType string) (persistence.ContentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.byKey[summaryKey(contentID, summaryType)]
	if !ok {
		return persistence.ContentSummary{}, persistence.ErrNotFound
	}
	return cs, nil
}

func (s *memSummaryStore) Upsert(ctx context.Context, cs persistence.ContentSummary) (persistence.ContentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs.UpdatedAt = time.Now().UTC()
	s.byKey[summaryKey(cs.ContentID, cs.SummaryType)] = cs
	return cs, nil
}
