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

// NewUserStore returns a Postgres-backed user store, or an in-memory one
// when pool is nil.
func NewUserStore(pool *pgxpool.Pool) persistence.UserStore {
	if pool == nil {
		return newMemoryUserStore()
	}
	return &pgUserStore{pool: pool}
}

// --- Postgres ---

type pgUserStore struct {
	pool *pgxpool.Pool
}

func (s *pgUserStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS crawl_schedules (
    user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    last_batch_crawl_at TIMESTAMPTZ,
    next_scheduled_crawl_at TIMESTAMPTZ,
    is_crawling BOOLEAN NOT NULL DEFAULT FALSE,
    crawl_frequency_hours INTEGER NOT NULL DEFAULT 24,
    last_run_source_count INTEGER NOT NULL DEFAULT 0,
    last_run_item_count INTEGER NOT NULL DEFAULT 0,
    last_crawl_duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0
);
`)
	return err
}

func (s *pgUserStore) Create(ctx context.Context, u persistence.User) (persistence.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)`, u.ID, u.Email, u.CreatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO crawl_schedules (user_id, crawl_frequency_hours) VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING`, u.ID, persistence.DefaultCrawlFrequencyHours)
	if err != nil {
		return persistence.User{}, err
	}
	return u, nil
}

func (s *pgUserStore) Get(ctx context.Context, userID string) (persistence.User, error) {
	var u persistence.User
	err := s.pool.QueryRow(ctx, `SELECT id, email, created_at FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.User{}, persistence.ErrNotFound
	}
	return u, err
}

func (s *pgUserStore) ListAll(ctx context.Context) ([]persistence.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, email, created_at FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []persistence.User{}
	for rows.Next() {
		var u persistence.User
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *pgUserStore) GetSchedule(ctx context.Context, userID string) (persistence.CrawlSchedule, error) {
	var sch persistence.CrawlSchedule
	sch.UserID = userID
	err := s.pool.QueryRow(ctx, `
SELECT last_batch_crawl_at, next_scheduled_crawl_at, is_crawling, crawl_frequency_hours,
       last_run_source_count, last_run_item_count, last_crawl_duration_seconds
FROM crawl_schedules WHERE user_id = $1`, userID).Scan(
		&sch.LastBatchCrawlAt, &sch.NextScheduledCrawlAt, &sch.IsCrawling, &sch.CrawlFrequencyHours,
		&sch.LastRunSourceCount, &sch.LastRunItemCount, &sch.LastCrawlDurationSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.CrawlSchedule{}, persistence.ErrNotFound
	}
	return sch, err
}

func (s *pgUserStore) TryBeginCrawl(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_schedules SET is_crawling = TRUE
WHERE user_id = $1 AND is_crawling = FALSE`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrAlreadyCrawling
	}
	return nil
}

func (s *pgUserStore) EndCrawl(ctx context.Context, userID string, sourceCount, itemCount int, duration time.Duration, nextCrawlAt time.Time) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
UPDATE crawl_schedules
SET is_crawling = FALSE, last_batch_crawl_at = $1, next_scheduled_crawl_at = $2,
    last_run_source_count = $3, last_run_item_count = $4, last_crawl_duration_seconds = $5
WHERE user_id = $6`, now, nextCrawlAt, sourceCount, itemCount, duration.Seconds(), userID)
	return err
}

// --- Memory ---

type memUserStore struct {
	mu        sync.Mutex
	users     map[string]persistence.User
	schedules map[string]persistence.CrawlSchedule
}

func newMemoryUserStore() *memUserStore {
	return &memUserStore{
		users:     make(map[string]persistence.User),
		schedules: make(map[string]persistence.CrawlSchedule),
	}
}

func (s *memUserStore) Init(ctx context.Context) error { return nil }

func (s *memUserStore) Create(ctx context.Context, u persistence.User) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	s.schedules[u.ID] = persistence.CrawlSchedule{
		UserID:              u.ID,
		CrawlFrequencyHours: persistence.DefaultCrawlFrequencyHours,
	}
	return u, nil
}

func (s *memUserStore) Get(ctx context.Context, userID string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) ListAll(ctx context.Context) ([]persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]persistence.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memUserStore) GetSchedule(ctx context.Context, userID string) (persistence.CrawlSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedules[userID]
	if !ok {
		return persistence.CrawlSchedule{}, persistence.ErrNotFound
	}
	return sch, nil
}

func (s *memUserStore) TryBeginCrawl(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedules[userID]
	if !ok {
		return persistence.ErrNotFound
	}
	if sch.IsCrawling {
		return persistence.ErrAlreadyCrawling
	}
	sch.IsCrawling = true
	s.schedules[userID] = sch
	return nil
}

func (s *memUserStore) EndCrawl(ctx context.Context, userID string, sourceCount, itemCount int, duration time.Duration, nextCrawlAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedules[userID]
	if !ok {
		return persistence.ErrNotFound
	}
	now := time.Now().UTC()
	sch.IsCrawling = false
	sch.LastBatchCrawlAt = &now
	sch.NextScheduledCrawlAt = &nextCrawlAt
	sch.LastRunSourceCount = sourceCount
	sch.LastRunItemCount = itemCount
	sch.LastCrawlDurationSeconds = duration.Seconds()
	s.schedules[userID] = sch
	return nil
}
