package databases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// NewTrackingEventStore returns a Postgres-backed store, or an in-memory
// one when pool is nil.
func NewTrackingEventStore(pool *pgxpool.Pool) persistence.TrackingEventStore {
	if pool == nil {
		return newMemoryTrackingEventStore()
	}
	return &pgTrackingEventStore{pool: pool}
}

// --- Postgres ---

type pgTrackingEventStore struct {
	pool *pgxpool.Pool
}

func (s *pgTrackingEventStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tracking_events (
    id UUID PRIMARY KEY,
    draft_id UUID NOT NULL,
    recipient_id UUID NOT NULL,
    type TEXT NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS tracking_events_draft_idx ON tracking_events(draft_id);
`)
	return err
}

func (s *pgTrackingEventStore) Record(ctx context.Context, e persistence.TrackingEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO tracking_events (id, draft_id, recipient_id, type, url, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`, e.ID, e.DraftID, e.RecipientID, e.Type, e.URL, e.CreatedAt)
	return err
}

func (s *pgTrackingEventStore) Stats(ctx context.Context, draftID string) (persistence.TrackingStats, error) {
	stats := persistence.TrackingStats{DraftID: draftID}
	err := s.pool.QueryRow(ctx, `
SELECT
    COUNT(*) FILTER (WHERE type=$2),
    COUNT(*) FILTER (WHERE type=$3),
    COUNT(DISTINCT recipient_id) FILTER (WHERE type=$2),
    COUNT(DISTINCT recipient_id) FILTER (WHERE type=$3)
FROM tracking_events WHERE draft_id=$1`,
		draftID, persistence.TrackingEventOpen, persistence.TrackingEventClick).
		Scan(&stats.Opens, &stats.Clicks, &stats.UniqueOpens, &stats.UniqueClicks)
	return stats, err
}

// --- Memory ---

type memTrackingEventStore struct {
	mu     sync.Mutex
	events []persistence.TrackingEvent
}

func newMemoryTrackingEventStore() *memTrackingEventStore {
	return &memTrackingEventStore{}
}

func (s *memTrackingEventStore) Init(ctx context.Context) error { return nil }

func (s *memTrackingEventStore) Record(ctx context.Context, e persistence.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memTrackingEventStore) Stats(ctx context.Context, draftID string) (persistence.TrackingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := persistence.TrackingStats{DraftID: draftID}
	openRecipients := map[string]bool{}
	clickRecipients := map[string]bool{}
	for _, e := range s.events {
		if e.DraftID != draftID {
			continue
		}
		switch e.Type {
		case persistence.TrackingEventOpen:
			stats.Opens++
			openRecipients[e.RecipientID] = true
		case persistence.TrackingEventClick:
			stats.Clicks++
			clickRecipients[e.RecipientID] = true
		}
	}
	stats.UniqueOpens = len(openRecipients)
	stats.UniqueClicks = len(clickRecipients)
	return stats, nil
}
