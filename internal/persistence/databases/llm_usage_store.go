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

// NewLLMUsageStore returns a Postgres-backed store, or an in-memory one
// when pool is nil. It is the durable source of truth for rate-limit
// counters; HotRowCache (redis_hotrow.go in this package) is its hot-row
// mirror when Redis is enabled.
func NewLLMUsageStore(pool *pgxpool.Pool) persistence.LLMUsageStore {
	if pool == nil {
		return newMemoryLLMUsageStore()
	}
	return &pgLLMUsageStore{pool: pool}
}

type pgLLMUsageStore struct {
	pool *pgxpool.Pool
}

func (s *pgLLMUsageStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS llm_usage_logs (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    model TEXT NOT NULL,
    tokens_total BIGINT NOT NULL DEFAULT 0,
    tokens_prompt BIGINT NOT NULL DEFAULT 0,
    tokens_completion BIGINT NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    metadata JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS llm_usage_logs_user_idx ON llm_usage_logs(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS llm_rate_limits (
    user_id UUID NOT NULL,
    limit_type TEXT NOT NULL,
    current_count BIGINT NOT NULL DEFAULT 0,
    limit_value BIGINT NOT NULL DEFAULT 0,
    reset_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, limit_type)
);
`)
	return err
}

func (s *pgLLMUsageStore) AppendUsage(ctx context.Context, log persistence.LLMUsageLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(nonNilMap(log.Metadata))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO llm_usage_logs (id, user_id, model, tokens_total, tokens_prompt, tokens_completion,
    duration_ms, status, error, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		log.ID, log.UserID, log.Model, log.TokensTotal, log.TokensPrompt, log.TokensCompletion,
		log.DurationMS, log.Status, log.Error, metaJSON, log.CreatedAt)
	return err
}

func (s *pgLLMUsageStore) ListUsage(ctx context.Context, userID string, since time.Time) ([]persistence.LLMUsageLog, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, model, tokens_total, tokens_prompt, tokens_completion, duration_ms, status, error, created_at
FROM llm_usage_logs WHERE user_id=$1 AND created_at >= $2 ORDER BY created_at DESC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []persistence.LLMUsageLog{}
	for rows.Next() {
		var l persistence.LLMUsageLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Model, &l.TokensTotal, &l.TokensPrompt, &l.TokensCompletion,
			&l.DurationMS, &l.Status, &l.Error, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *pgLLMUsageStore) GetRateLimit(ctx context.Context, userID, limitType string) (persistence.LLMRateLimit, bool, error) {
	var rl persistence.LLMRateLimit
	err := s.pool.QueryRow(ctx, `
SELECT user_id, limit_type, current_count, limit_value, reset_at
FROM llm_rate_limits WHERE user_id=$1 AND limit_type=$2`, userID, limitType).
		Scan(&rl.UserID, &rl.LimitType, &rl.CurrentCount, &rl.LimitValue, &rl.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.LLMRateLimit{}, false, nil
	}
	if err != nil {
		return persistence.LLMRateLimit{}, false, err
	}
	return rl, true, nil
}

// IncrementRateLimit performs a lazy first-use upsert: the row is created
// on first call for a (user, limit_type) pair, reset when reset_at has
// passed, and the increment is rejected (ok=false) once current_count
// would exceed limit_value.
func (s *pgLLMUsageStore) IncrementRateLimit(ctx context.Context, userID, limitType string, limitValue int64, resetAt time.Time) (persistence.LLMRateLimit, bool, error) {
	now := time.Now().UTC()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistence.LLMRateLimit{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rl persistence.LLMRateLimit
	err = tx.QueryRow(ctx, `
SELECT user_id, limit_type, current_count, limit_value, reset_at
FROM llm_rate_limits WHERE user_id=$1 AND limit_type=$2 FOR UPDATE`, userID, limitType).
		Scan(&rl.UserID, &rl.LimitType, &rl.CurrentCount, &rl.LimitValue, &rl.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		rl = persistence.LLMRateLimit{UserID: userID, LimitType: limitType, LimitValue: limitValue, ResetAt: resetAt}
		if _, err := tx.Exec(ctx, `
INSERT INTO llm_rate_limits (user_id, limit_type, current_count, limit_value, reset_at)
VALUES ($1,$2,0,$3,$4)`, userID, limitType, limitValue, resetAt); err != nil {
			return persistence.LLMRateLimit{}, false, err
		}
	} else if err != nil {
		return persistence.LLMRateLimit{}, false, err
	}

	if !now.Before(rl.ResetAt) {
		rl.CurrentCount = 0
		rl.ResetAt = resetAt
		rl.LimitValue = limitValue
	}

	if rl.CurrentCount >= rl.LimitValue {
		if _, err := tx.Exec(ctx, `
UPDATE llm_rate_limits SET current_count=$1, limit_value=$2, reset_at=$3 WHERE user_id=$4 AND limit_type=$5`,
			rl.CurrentCount, rl.LimitValue, rl.ResetAt, userID, limitType); err != nil {
			return persistence.LLMRateLimit{}, false, err
		}
		return rl, false, tx.Commit(ctx)
	}

	rl.CurrentCount++
	if _, err := tx.Exec(ctx, `
UPDATE llm_rate_limits SET current_count=$1, limit_value=$2, reset_at=$3 WHERE user_id=$4 AND limit_type=$5`,
		rl.CurrentCount, rl.LimitValue, rl.ResetAt, userID, limitType); err != nil {
		return persistence.LLMRateLimit{}, false, err
	}
	return rl, true, tx.Commit(ctx)
}

// --- Memory ---

type memLLMUsageStore struct {
	mu     sync.Mutex
	logs   []persistence.LLMUsageLog
	limits map[string]persistence.LLMRateLimit
}

func newMemoryLLMUsageStore() *memLLMUsageStore {
	return &memLLMUsageStore{limits: make(map[string]persistence.LLMRateLimit)}
}

func (s *memLLMUsageStore) Init(ctx context.Context) error { return nil }

func (s *memLLMUsageStore) AppendUsage(ctx context.Context, log persistence.LLMUsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	s.logs = append(s.logs, log)
	return nil
}

func (s *memLLMUsageStore) ListUsage(ctx context.Context, userID string, since time.Time) ([]persistence.LLMUsageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.LLMUsageLog{}
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if l.UserID == userID && !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func rateLimitKey(userID, limitType string) string { return userID + "|" + limitType }

func (s *memLLMUsageStore) GetRateLimit(ctx context.Context, userID, limitType string) (persistence.LLMRateLimit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.limits[rateLimitKey(userID, limitType)]
	return rl, ok, nil
}

func (s *memLLMUsageStore) IncrementRateLimit(ctx context.Context, userID, limitType string, limitValue int64, resetAt time.Time) (persistence.LLMRateLimit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rateLimitKey(userID, limitType)
	rl, ok := s.limits[key]
	if !ok {
		rl = persistence.LLMRateLimit{UserID: userID, LimitType: limitType, LimitValue: limitValue, ResetAt: resetAt}
	}
	now := time.Now().UTC()
	if !now.Before(rl.ResetAt) {
		rl.CurrentCount = 0
		rl.ResetAt = resetAt
		rl.LimitValue = limitValue
	}
	if rl.CurrentCount >= rl.LimitValue {
		s.limits[key] = rl
		return rl, false, nil
	}
	rl.CurrentCount++
	s.limits[key] = rl
	return rl, true, nil
}
