package databases

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewVoiceSampleStore returns a Postgres-backed store, or an in-memory one
// when pool is nil.
func NewVoiceSampleStore(pool *pgxpool.Pool) persistence.VoiceSampleStore {
	if pool == nil {
		return newMemoryVoiceSampleStore()
	}
	return &pgVoiceSampleStore{pool: pool}
}

// --- Postgres ---

type pgVoiceSampleStore struct {
	pool *pgxpool.Pool
}

func (s *pgVoiceSampleStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS voice_samples (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    blob_key TEXT NOT NULL,
    filename TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL DEFAULT '',
    size BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS voice_samples_user_idx ON voice_samples(user_id, created_at DESC);
`)
	return err
}

func (s *pgVoiceSampleStore) Create(ctx context.Context, v persistence.VoiceSample) (persistence.VoiceSample, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO voice_samples (id, user_id, blob_key, filename, content_type, size, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, v.ID, v.UserID, v.BlobKey, v.Filename, v.ContentType, v.Size, v.CreatedAt)
	if err != nil {
		return persistence.VoiceSample{}, err
	}
	return v, nil
}

func (s *pgVoiceSampleStore) ListByUser(ctx context.Context, userID string) ([]persistence.VoiceSample, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, blob_key, filename, content_type, size, created_at
FROM voice_samples WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []persistence.VoiceSample{}
	for rows.Next() {
		var v persistence.VoiceSample
		if err := rows.Scan(&v.ID, &v.UserID, &v.BlobKey, &v.Filename, &v.ContentType, &v.Size, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *pgVoiceSampleStore) Get(ctx context.Context, userID, sampleID string) (persistence.VoiceSample, error) {
	var v persistence.VoiceSample
	err := s.pool.QueryRow(ctx, `
SELECT id, user_id, blob_key, filename, content_type, size, created_at
FROM voice_samples WHERE user_id=$1 AND id=$2`, userID, sampleID).
		Scan(&v.ID, &v.UserID, &v.BlobKey, &v.Filename, &v.ContentType, &v.Size, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.VoiceSample{}, persistence.ErrNotFound
	}
	return v, err
}

func (s *pgVoiceSampleStore) Delete(ctx context.Context, userID, sampleID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM voice_samples WHERE user_id=$1 AND id=$2`, userID, sampleID)
	return err
}

// --- Memory ---

type memVoiceSampleStore struct {
	mu      sync.Mutex
	samples map[string]persistence.VoiceSample
}

func newMemoryVoiceSampleStore() *memVoiceSampleStore {
	return &memVoiceSampleStore{samples: make(map[string]persistence.VoiceSample)}
}

func (s *memVoiceSampleStore) Init(ctx context.Context) error { return nil }

func (s *memVoiceSampleStore) Create(ctx context.Context, v persistence.VoiceSample) (persistence.VoiceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.samples[v.ID] = v
	return v, nil
}

func (s *memVoiceSampleStore) ListByUser(ctx context.Context, userID string) ([]persistence.VoiceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.VoiceSample{}
	for _, v := range s.samples {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memVoiceSampleStore) Get(ctx context.Context, userID, sampleID string) (persistence.VoiceSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.samples[sampleID]
	if !ok || v.UserID != userID {
		return persistence.VoiceSample{}, persistence.ErrNotFound
	}
	return v, nil
}

func (s *memVoiceSampleStore) Delete(ctx context.Context, userID, sampleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.samples[sampleID]; ok && v.UserID == userID {
		delete(s.samples, sampleID)
	}
	return nil
}
