package databases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewFeedbackStore returns a Postgres-backed store, or an in-memory one
// when pool is nil.
func NewFeedbackStore(pool *pgxpool.Pool) persistence.FeedbackStore {
	if pool == nil {
		return newMemoryFeedbackStore()
	}
	return &pgFeedbackStore{pool: pool}
}

type pgFeedbackStore struct {
	pool *pgxpool.Pool
}

func (s *pgFeedbackStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS feedback (
    id UUID PRIMARY KEY,
    draft_id UUID NOT NULL,
    section_id TEXT NOT NULL DEFAULT '',
    user_id UUID NOT NULL,
    type TEXT NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS feedback_draft_idx ON feedback(draft_id);
CREATE INDEX IF NOT EXISTS feedback_user_idx ON feedback(user_id, created_at DESC);
`)
	return err
}

func (s *pgFeedbackStore) Create(ctx context.Context, f persistence.Feedback) (persistence.Feedback, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO feedback (id, draft_id, section_id, user_id, type, comment, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, f.ID, f.DraftID, f.SectionID, f.UserID, f.Type, f.Comment, f.CreatedAt)
	if err != nil {
		return persistence.Feedback{}, err
	}
	return f, nil
}

func (s *pgFeedbackStore) Get(ctx context.Context, id string) (persistence.Feedback, error) {
	var f persistence.Feedback
	err := s.pool.QueryRow(ctx, `
SELECT id, draft_id, section_id, user_id, type, comment, created_at
FROM feedback WHERE id=$1`, id).
		Scan(&f.ID, &f.DraftID, &f.SectionID, &f.UserID, &f.Type, &f.Comment, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.Feedback{}, persistence.ErrNotFound
	}
	return f, err
}

func (s *pgFeedbackStore) Update(ctx context.Context, f persistence.Feedback) (persistence.Feedback, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE feedback SET type=$1, comment=$2 WHERE id=$3`, f.Type, f.Comment, f.ID)
	if err != nil {
		return persistence.Feedback{}, err
	}
	if tag.RowsAffected() == 0 {
		return persistence.Feedback{}, persistence.ErrNotFound
	}
	return s.Get(ctx, f.ID)
}

func (s *pgFeedbackStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM feedback WHERE id=$1`, id)
	return err
}

func (s *pgFeedbackStore) ListByDraft(ctx context.Context, draftID string) ([]persistence.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, draft_id, section_id, user_id, type, comment, created_at
FROM feedback WHERE draft_id=$1 ORDER BY created_at ASC`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []persistence.Feedback{}
	for rows.Next() {
		var f persistence.Feedback
		if err := rows.Scan(&f.ID, &f.DraftID, &f.SectionID, &f.UserID, &f.Type, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *pgFeedbackStore) ListByUser(ctx context.Context, userID string, limit int) ([]persistence.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, draft_id, section_id, user_id, type, comment, created_at
FROM feedback WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []persistence.Feedback{}
	for rows.Next() {
		var f persistence.Feedback
		if err := rows.Scan(&f.ID, &f.DraftID, &f.SectionID, &f.UserID, &f.Type, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- Memory ---

type memFeedbackStore struct {
	mu       sync.Mutex
	feedback []persistence.Feedback
}

func newMemoryFeedbackStore() *memFeedbackStore { return &memFeedbackStore{} }

func (s *memFeedbackStore) Init(ctx context.Context) error { return nil }

func (s *memFeedbackStore) Create(ctx context.Context, f persistence.Feedback) (persistence.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	s.feedback = append(s.feedback, f)
	return f, nil
}

func (s *memFeedbackStore) Get(ctx context.Context, id string) (persistence.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.feedback {
		if f.ID == id {
			return f, nil
		}
	}
	return persistence.Feedback{}, persistence.ErrNotFound
}

func (s *memFeedbackStore) Update(ctx context.Context, f persistence.Feedback) (persistence.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.feedback {
		if existing.ID == f.ID {
			existing.Type = f.Type
			existing.Comment = f.Comment
			s.feedback[i] = existing
			return existing, nil
		}
	}
	return persistence.Feedback{}, persistence.ErrNotFound
}

func (s *memFeedbackStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.feedback {
		if f.ID == id {
			s.feedback = append(s.feedback[:i], s.feedback[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memFeedbackStore) ListByDraft(ctx context.Context, draftID string) ([]persistence.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.Feedback{}
	for _, f := range s.feedback {
		if f.DraftID == draftID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memFeedbackStore) ListByUser(ctx context.Context, userID string, limit int) ([]persistence.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []persistence.Feedback
	for i := len(s.feedback) - 1; i >= 0 && len(out) < limit; i-- {
		if s.feedback[i].UserID == userID {
			out = append(out, s.feedback[i])
		}
	}
	return out, nil
}
