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

// NewDraftStore returns a Postgres-backed draft store, or an in-memory one
// when pool is nil.
func NewDraftStore(pool *pgxpool.Pool) persistence.DraftStore {
	if pool == nil {
		return newMemoryDraftStore()
	}
	return &pgDraftStore{pool: pool}
}

type pgDraftStore struct {
	pool *pgxpool.Pool
}

func (s *pgDraftStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS drafts (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    sections JSONB NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'generating',
    metadata JSONB NOT NULL DEFAULT '{}',
    generated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    published_at TIMESTAMPTZ,
    email_sent BOOLEAN NOT NULL DEFAULT FALSE,
    email_sent_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS drafts_user_generated_idx ON drafts(user_id, generated_at DESC);
`)
	return err
}

func (s *pgDraftStore) Create(ctx context.Context, d persistence.Draft) (persistence.Draft, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = persistence.DraftStatusGenerating
	}
	if d.GeneratedAt.IsZero() {
		d.GeneratedAt = time.Now().UTC()
	}
	sectionsJSON, err := json.Marshal(d.Sections)
	if err != nil {
		return persistence.Draft{}, err
	}
	metaJSON, err := json.Marshal(nonNilMap(d.Metadata))
	if err != nil {
		return persistence.Draft{}, err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO drafts (id, user_id, title, sections, status, metadata, generated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, d.ID, d.UserID, d.Title, sectionsJSON, d.Status, metaJSON, d.GeneratedAt)
	if err != nil {
		return persistence.Draft{}, err
	}
	return d, nil
}

func (s *pgDraftStore) Get(ctx context.Context, draftID string) (persistence.Draft, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, user_id, title, sections, status, metadata, generated_at, published_at, email_sent, email_sent_at
FROM drafts WHERE id=$1`, draftID)
	d, err := scanDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.Draft{}, persistence.ErrNotFound
	}
	return d, err
}

func (s *pgDraftStore) GetLatestForUser(ctx context.Context, userID string) (persistence.Draft, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, user_id, title, sections, status, metadata, generated_at, published_at, email_sent, email_sent_at
FROM drafts WHERE user_id=$1 ORDER BY generated_at DESC LIMIT 1`, userID)
	d, err := scanDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.Draft{}, persistence.ErrNotFound
	}
	return d, err
}

// Update persists the full editable surface of a draft row — title,
// sections, status, and metadata. Unlike SetStatus it performs no CAS
// guard: it's the internal path the draft generator uses to move a
// placeholder through generating -> ready|failed, and to reset a
// ready/editing/failed row back to generating on regeneration, none of
// which are transitions CanTransitionTo's API-facing state machine models.
func (s *pgDraftStore) Update(ctx context.Context, d persistence.Draft) (persistence.Draft, error) {
	sectionsJSON, err := json.Marshal(d.Sections)
	if err != nil {
		return persistence.Draft{}, err
	}
	metaJSON, err := json.Marshal(nonNilMap(d.Metadata))
	if err != nil {
		return persistence.Draft{}, err
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE drafts SET title=$1, sections=$2, status=$3, metadata=$4, generated_at=$5 WHERE id=$6`,
		d.Title, sectionsJSON, d.Status, metaJSON, d.GeneratedAt, d.ID)
	if err != nil {
		return persistence.Draft{}, err
	}
	if tag.RowsAffected() == 0 {
		return persistence.Draft{}, persistence.ErrNotFound
	}
	return s.Get(ctx, d.ID)
}

func (s *pgDraftStore) SetStatus(ctx context.Context, draftID, status string) (persistence.Draft, error) {
	current, err := s.Get(ctx, draftID)
	if err != nil {
		return persistence.Draft{}, err
	}
	if !current.CanTransitionTo(status) {
		return persistence.Draft{}, persistence.ErrRevisionConflict
	}
	var publishedAt any
	if status == persistence.DraftStatusPublished {
		now := time.Now().UTC()
		publishedAt = now
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE drafts SET status=$1, published_at=COALESCE($2, published_at) WHERE id=$3 AND status=$4`,
		status, publishedAt, draftID, current.Status)
	if err != nil {
		return persistence.Draft{}, err
	}
	if tag.RowsAffected() == 0 {
		return persistence.Draft{}, persistence.ErrRevisionConflict
	}
	return s.Get(ctx, draftID)
}

func (s *pgDraftStore) MarkEmailSent(ctx context.Context, draftID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE drafts SET email_sent=TRUE, email_sent_at=$1 WHERE id=$2`, at, draftID)
	return err
}

func (s *pgDraftStore) Delete(ctx context.Context, draftID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drafts WHERE id=$1`, draftID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanDraft(row pgx.Row) (persistence.Draft, error) {
	var d persistence.Draft
	var sectionsJSON, metaJSON []byte
	err := row.Scan(&d.ID, &d.UserID, &d.Title, &sectionsJSON, &d.Status, &metaJSON,
		&d.GeneratedAt, &d.PublishedAt, &d.EmailSent, &d.EmailSentAt)
	if err != nil {
		return persistence.Draft{}, err
	}
	_ = json.Unmarshal(sectionsJSON, &d.Sections)
	_ = json.Unmarshal(metaJSON, &d.Metadata)
	return d, nil
}

// --- Memory ---

type memDraftStore struct {
	mu           sync.Mutex
	drafts       map[string]persistence.Draft
	latestByUser map[string]string
}

func newMemoryDraftStore() *memDraftStore {
	return &memDraftStore{
		drafts:       make(map[string]persistence.Draft),
		latestByUser: make(map[string]string),
	}
}

func (s *memDraftStore) Init(ctx context.Context) error { return nil }

func (s *memDraftStore) Create(ctx context.Context, d persistence.Draft) (persistence.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = persistence.DraftStatusGenerating
	}
	if d.GeneratedAt.IsZero() {
		d.GeneratedAt = time.Now().UTC()
	}
	s.drafts[d.ID] = d
	s.latestByUser[d.UserID] = d.ID
	return d, nil
}

func (s *memDraftStore) Get(ctx context.Context, draftID string) (persistence.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok {
		return persistence.Draft{}, persistence.ErrNotFound
	}
	return d, nil
}

func (s *memDraftStore) GetLatestForUser(ctx context.Context, userID string) (persistence.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.latestByUser[userID]
	if !ok {
		return persistence.Draft{}, persistence.ErrNotFound
	}
	return s.drafts[id], nil
}

func (s *memDraftStore) Update(ctx context.Context, d persistence.Draft) (persistence.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.drafts[d.ID]
	if !ok {
		return persistence.Draft{}, persistence.ErrNotFound
	}
	existing.Title = d.Title
	existing.Sections = d.Sections
	existing.Status = d.Status
	existing.Metadata = d.Metadata
	existing.GeneratedAt = d.GeneratedAt
	s.drafts[d.ID] = existing
	return existing, nil
}

func (s *memDraftStore) SetStatus(ctx context.Context, draftID, status string) (persistence.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok {
		return persistence.Draft{}, persistence.ErrNotFound
	}
	if !d.CanTransitionTo(status) {
		return persistence.Draft{}, persistence.ErrRevisionConflict
	}
	d.Status = status
	if status == persistence.DraftStatusPublished {
		now := time.Now().UTC()
		d.PublishedAt = &now
	}
	s.drafts[draftID] = d
	return d, nil
}

func (s *memDraftStore) MarkEmailSent(ctx context.Context, draftID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok {
		return persistence.ErrNotFound
	}
	d.EmailSent = true
	d.EmailSentAt = &at
	s.drafts[draftID] = d
	return nil
}

func (s *memDraftStore) Delete(ctx context.Context, draftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[draftID]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(s.drafts, draftID)
	if s.latestByUser[d.UserID] == draftID {
		delete(s.latestByUser, d.UserID)
	}
	return nil
}
