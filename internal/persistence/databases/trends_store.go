package databases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewTrendStore returns a Postgres-backed trend store, or an in-memory one
// when pool is nil.
func NewTrendStore(pool *pgxpool.Pool) persistence.TrendStore {
	if pool == nil {
		return newMemoryTrendStore()
	}
	return &pgTrendStore{pool: pool}
}

type pgTrendStore struct {
	pool *pgxpool.Pool
}

func (s *pgTrendStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS trends (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    topic TEXT NOT NULL,
    score DOUBLE PRECISION NOT NULL,
    supporting_item_ids TEXT[] NOT NULL DEFAULT '{}',
    detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS trends_user_detected_idx ON trends(user_id, detected_at DESC);
`)
	return err
}

func (s *pgTrendStore) Create(ctx context.Context, t persistence.Trend) (persistence.Trend, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.DetectedAt.IsZero() {
		t.DetectedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO trends (id, user_id, topic, score, supporting_item_ids, detected_at)
VALUES ($1,$2,$3,$4,$5,$6)`, t.ID, t.UserID, t.Topic, t.Score, t.SupportingItemIDs, t.DetectedAt)
	if err != nil {
		return persistence.Trend{}, err
	}
	return t, nil
}

func (s *pgTrendStore) LatestForUser(ctx context.Context, userID string, limit int) ([]persistence.Trend, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, topic, score, supporting_item_ids, detected_at
FROM trends WHERE user_id=$1 ORDER BY detected_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []persistence.Trend{}
	for rows.Next() {
		var t persistence.Trend
		if err := rows.Scan(&t.ID, &t.UserID, &t.Topic, &t.Score, &t.SupportingItemIDs, &t.DetectedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Memory ---

type memTrendStore struct {
	mu     sync.Mutex
	trends []persistence.Trend
}

func newMemoryTrendStore() *memTrendStore { return &memTrendStore{} }

func (s *memTrendStore) Init(ctx context.Context) error { return nil }

func (s *memTrendStore) Create(ctx context.Context, t persistence.Trend) (persistence.Trend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.DetectedAt.IsZero() {
		t.DetectedAt = time.Now().UTC()
	}
	s.trends = append(s.trends, t)
	return t, nil
}

func (s *memTrendStore) LatestForUser(ctx context.Context, userID string, limit int) ([]persistence.Trend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var matches []persistence.Trend
	for i := len(s.trends) - 1; i >= 0 && len(matches) < limit; i-- {
		if s.trends[i].UserID == userID {
			matches = append(matches, s.trends[i])
		}
	}
	return matches, nil
}
