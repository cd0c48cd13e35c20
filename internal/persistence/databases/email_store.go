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

// NewEmailDeliveryStore returns a Postgres-backed store, or an in-memory
// one when pool is nil.
func NewEmailDeliveryStore(pool *pgxpool.Pool) persistence.EmailDeliveryStore {
	if pool == nil {
		return newMemoryEmailDeliveryStore()
	}
	return &pgEmailDeliveryStore{pool: pool}
}

type pgEmailDeliveryStore struct {
	pool *pgxpool.Pool
}

func (s *pgEmailDeliveryStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS email_delivery_logs (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    draft_id UUID NOT NULL,
    recipient_id UUID NOT NULL,
    status TEXT NOT NULL DEFAULT 'queued',
    retry_count INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    metadata JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS email_delivery_logs_user_idx ON email_delivery_logs(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS email_rate_limits (
    user_id UUID PRIMARY KEY,
    current_count INTEGER NOT NULL DEFAULT 0,
    limit_value INTEGER NOT NULL DEFAULT 0,
    reset_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS unsubscribes (
    user_id UUID NOT NULL,
    recipient_email TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, recipient_email)
);

CREATE TABLE IF NOT EXISTS recipients (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    email TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, email)
);
`)
	return err
}

func (s *pgEmailDeliveryStore) AppendLog(ctx context.Context, log persistence.EmailDeliveryLog) (persistence.EmailDeliveryLog, error) {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	if log.Status == "" {
		log.Status = persistence.EmailStatusQueued
	}
	metaJSON, err := json.Marshal(nonNilMap(log.Metadata))
	if err != nil {
		return persistence.EmailDeliveryLog{}, err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO email_delivery_logs (id, user_id, draft_id, recipient_id, status, retry_count, error, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		log.ID, log.UserID, log.DraftID, log.RecipientID, log.Status, log.RetryCount, log.Error, metaJSON, log.CreatedAt, log.UpdatedAt)
	if err != nil {
		return persistence.EmailDeliveryLog{}, err
	}
	return log, nil
}

func (s *pgEmailDeliveryStore) UpdateLogStatus(ctx context.Context, logID, status, errMsg string) (persistence.EmailDeliveryLog, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
UPDATE email_delivery_logs SET status=$1, error=$2, updated_at=$3 WHERE id=$4`, status, errMsg, now, logID)
	if err != nil {
		return persistence.EmailDeliveryLog{}, err
	}
	if tag.RowsAffected() == 0 {
		return persistence.EmailDeliveryLog{}, persistence.ErrNotFound
	}
	return s.getLog(ctx, logID)
}

func (s *pgEmailDeliveryStore) IncrementRetry(ctx context.Context, logID string) (persistence.EmailDeliveryLog, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
UPDATE email_delivery_logs SET retry_count = retry_count + 1, updated_at=$1 WHERE id=$2`, now, logID)
	if err != nil {
		return persistence.EmailDeliveryLog{}, err
	}
	if tag.RowsAffected() == 0 {
		return persistence.EmailDeliveryLog{}, persistence.ErrNotFound
	}
	return s.getLog(ctx, logID)
}

func (s *pgEmailDeliveryStore) getLog(ctx context.Context, logID string) (persistence.EmailDeliveryLog, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, user_id, draft_id, recipient_id, status, retry_count, error, metadata, created_at, updated_at
FROM email_delivery_logs WHERE id=$1`, logID)
	var l persistence.EmailDeliveryLog
	var metaJSON []byte
	err := row.Scan(&l.ID, &l.UserID, &l.DraftID, &l.RecipientID, &l.Status, &l.RetryCount, &l.Error, &metaJSON, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.EmailDeliveryLog{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.EmailDeliveryLog{}, err
	}
	_ = json.Unmarshal(metaJSON, &l.Metadata)
	return l, nil
}

func (s *pgEmailDeliveryStore) ListLogsByUser(ctx context.Context, userID string, limit int) ([]persistence.EmailDeliveryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, draft_id, recipient_id, status, retry_count, error, metadata, created_at, updated_at
FROM email_delivery_logs WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmailDeliveryLogs(rows)
}

func (s *pgEmailDeliveryStore) ListLogsByDraft(ctx context.Context, draftID string) ([]persistence.EmailDeliveryLog, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, draft_id, recipient_id, status, retry_count, error, metadata, created_at, updated_at
FROM email_delivery_logs WHERE draft_id=$1 ORDER BY created_at ASC`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmailDeliveryLogs(rows)
}

func scanEmailDeliveryLogs(rows pgx.Rows) ([]persistence.EmailDeliveryLog, error) {
	out := []persistence.EmailDeliveryLog{}
	for rows.Next() {
		var l persistence.EmailDeliveryLog
		var metaJSON []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.DraftID, &l.RecipientID, &l.Status, &l.RetryCount, &l.Error, &metaJSON, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(metaJSON, &l.Metadata)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *pgEmailDeliveryStore) GetDailyLimit(ctx context.Context, userID string, limitValue int, resetAt time.Time) (persistence.EmailRateLimit, bool, error) {
	var rl persistence.EmailRateLimit
	err := s.pool.QueryRow(ctx, `
SELECT user_id, current_count, limit_value, reset_at FROM email_rate_limits WHERE user_id=$1`, userID).
		Scan(&rl.UserID, &rl.CurrentCount, &rl.LimitValue, &rl.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.EmailRateLimit{}, false, nil
	}
	if err != nil {
		return persistence.EmailRateLimit{}, false, err
	}
	return rl, true, nil
}

// IncrementDaily upserts the per-user daily counter, resetting at midnight
// UTC boundaries via the caller-supplied resetAt, and rejects (ok=false)
// once current_count would exceed limitValue.
func (s *pgEmailDeliveryStore) IncrementDaily(ctx context.Context, userID string, limitValue int, resetAt time.Time) (persistence.EmailRateLimit, bool, error) {
	now := time.Now().UTC()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistence.EmailRateLimit{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rl persistence.EmailRateLimit
	err = tx.QueryRow(ctx, `
SELECT user_id, current_count, limit_value, reset_at FROM email_rate_limits WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&rl.UserID, &rl.CurrentCount, &rl.LimitValue, &rl.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		rl = persistence.EmailRateLimit{UserID: userID, LimitValue: limitValue, ResetAt: resetAt}
		if _, err := tx.Exec(ctx, `
INSERT INTO email_rate_limits (user_id, current_count, limit_value, reset_at) VALUES ($1,0,$2,$3)`,
			userID, limitValue, resetAt); err != nil {
			return persistence.EmailRateLimit{}, false, err
		}
	} else if err != nil {
		return persistence.EmailRateLimit{}, false, err
	}

	if !now.Before(rl.ResetAt) {
		rl.CurrentCount = 0
		rl.ResetAt = resetAt
		rl.LimitValue = limitValue
	}

	if rl.CurrentCount >= rl.LimitValue {
		_, _ = tx.Exec(ctx, `UPDATE email_rate_limits SET current_count=$1, limit_value=$2, reset_at=$3 WHERE user_id=$4`,
			rl.CurrentCount, rl.LimitValue, rl.ResetAt, userID)
		return rl, false, tx.Commit(ctx)
	}

	rl.CurrentCount++
	if _, err := tx.Exec(ctx, `UPDATE email_rate_limits SET current_count=$1, limit_value=$2, reset_at=$3 WHERE user_id=$4`,
		rl.CurrentCount, rl.LimitValue, rl.ResetAt, userID); err != nil {
		return persistence.EmailRateLimit{}, false, err
	}
	return rl, true, tx.Commit(ctx)
}

func (s *pgEmailDeliveryStore) IsUnsubscribed(ctx context.Context, userID, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM unsubscribes WHERE user_id=$1 AND recipient_email=$2)`, userID, email).Scan(&exists)
	return exists, err
}

func (s *pgEmailDeliveryStore) Unsubscribe(ctx context.Context, userID, email string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO unsubscribes (user_id, recipient_email) VALUES ($1,$2)
ON CONFLICT (user_id, recipient_email) DO NOTHING`, userID, email)
	return err
}

func (s *pgEmailDeliveryStore) ListRecipients(ctx context.Context, userID string) ([]persistence.Recipient, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, email, status, created_at FROM recipients WHERE user_id=$1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []persistence.Recipient{}
	for rows.Next() {
		var r persistence.Recipient
		if err := rows.Scan(&r.ID, &r.UserID, &r.Email, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *pgEmailDeliveryStore) UpsertRecipient(ctx context.Context, r persistence.Recipient) (persistence.Recipient, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = persistence.RecipientStatusActive
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO recipients (id, user_id, email, status, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id, email) DO UPDATE SET status = EXCLUDED.status`,
		r.ID, r.UserID, r.Email, r.Status, r.CreatedAt)
	if err != nil {
		return persistence.Recipient{}, err
	}
	return r, nil
}

func (s *pgEmailDeliveryStore) DeleteRecipient(ctx context.Context, userID, recipientID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM recipients WHERE user_id=$1 AND id=$2`, userID, recipientID)
	return err
}

// --- Memory ---

type memEmailDeliveryStore struct {
	mu           sync.Mutex
	logs         map[string]persistence.EmailDeliveryLog
	dailyLimits  map[string]persistence.EmailRateLimit
	unsubscribed map[string]bool
	recipients   map[string]persistence.Recipient
}

func newMemoryEmailDeliveryStore() *memEmailDeliveryStore {
	return &memEmailDeliveryStore{
		logs:         make(map[string]persistence.EmailDeliveryLog),
		dailyLimits:  make(map[string]persistence.EmailRateLimit),
		unsubscribed: make(map[string]bool),
		recipients:   make(map[string]persistence.Recipient),
	}
}

func (s *memEmailDeliveryStore) Init(ctx context.Context) error { return nil }

func (s *memEmailDeliveryStore) AppendLog(ctx context.Context, log persistence.EmailDeliveryLog) (persistence.EmailDeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	if log.Status == "" {
		log.Status = persistence.EmailStatusQueued
	}
	s.logs[log.ID] = log
	return log, nil
}

func (s *memEmailDeliveryStore) UpdateLogStatus(ctx context.Context, logID, status, errMsg string) (persistence.EmailDeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[logID]
	if !ok {
		return persistence.EmailDeliveryLog{}, persistence.ErrNotFound
	}
	l.Status = status
	l.Error = errMsg
	l.UpdatedAt = time.Now().UTC()
	s.logs[logID] = l
	return l, nil
}

func (s *memEmailDeliveryStore) IncrementRetry(ctx context.Context, logID string) (persistence.EmailDeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[logID]
	if !ok {
		return persistence.EmailDeliveryLog{}, persistence.ErrNotFound
	}
	l.RetryCount++
	l.UpdatedAt = time.Now().UTC()
	s.logs[logID] = l
	return l, nil
}

func (s *memEmailDeliveryStore) ListLogsByUser(ctx context.Context, userID string, limit int) ([]persistence.EmailDeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	all := make([]persistence.EmailDeliveryLog, 0, len(s.logs))
	for _, l := range s.logs {
		if l.UserID == userID {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *memEmailDeliveryStore) ListLogsByDraft(ctx context.Context, draftID string) ([]persistence.EmailDeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.EmailDeliveryLog{}
	for _, l := range s.logs {
		if l.DraftID == draftID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memEmailDeliveryStore) GetDailyLimit(ctx context.Context, userID string, limitValue int, resetAt time.Time) (persistence.EmailRateLimit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.dailyLimits[userID]
	return rl, ok, nil
}

func (s *memEmailDeliveryStore) IncrementDaily(ctx context.Context, userID string, limitValue int, resetAt time.Time) (persistence.EmailRateLimit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.dailyLimits[userID]
	if !ok {
		rl = persistence.EmailRateLimit{UserID: userID, LimitValue: limitValue, ResetAt: resetAt}
	}
	now := time.Now().UTC()
	if !now.Before(rl.ResetAt) {
		rl.CurrentCount = 0
		rl.ResetAt = resetAt
		rl.LimitValue = limitValue
	}
	if rl.CurrentCount >= rl.LimitValue {
		s.dailyLimits[userID] = rl
		return rl, false, nil
	}
	rl.CurrentCount++
	s.dailyLimits[userID] = rl
	return rl, true, nil
}

func (s *memEmailDeliveryStore) IsUnsubscribed(ctx context.Context, userID, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed[userID+"|"+email], nil
}

func (s *memEmailDeliveryStore) Unsubscribe(ctx context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed[userID+"|"+email] = true
	return nil
}

func (s *memEmailDeliveryStore) ListRecipients(ctx context.Context, userID string) ([]persistence.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.Recipient{}
	for _, r := range s.recipients {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memEmailDeliveryStore) UpsertRecipient(ctx context.Context, r persistence.Recipient) (persistence.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = persistence.RecipientStatusActive
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	key := r.UserID + "|" + r.Email
	for existingID, existing := range s.recipients {
		if existing.UserID == r.UserID && existing.Email == r.Email {
			r.ID = existingID
			break
		}
	}
	_ = key
	s.recipients[r.ID] = r
	return r, nil
}

func (s *memEmailDeliveryStore) DeleteRecipient(ctx context.Context, userID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recipients[recipientID]; ok && r.UserID == userID {
		delete(s.recipients, recipientID)
	}
	return nil
}
