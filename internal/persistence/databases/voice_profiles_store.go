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

// NewVoiceProfileStore returns a Postgres-backed store, or an in-memory one
// when pool is nil. There is exactly one profile row per user; Upsert
// replaces it in full.
func NewVoiceProfileStore(pool *pgxpool.Pool) persistence.VoiceProfileStore {
	if pool == nil {
		return newMemoryVoiceProfileStore()
	}
	return &pgVoiceProfileStore{pool: pool}
}

type pgVoiceProfileStore struct {
	pool *pgxpool.Pool
}

func (s *pgVoiceProfileStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS voice_profiles (
    user_id UUID PRIMARY KEY,
    tone TEXT NOT NULL DEFAULT '',
    style TEXT NOT NULL DEFAULT '',
    vocabulary_level TEXT NOT NULL DEFAULT '',
    personality_traits TEXT[] NOT NULL DEFAULT '{}',
    writing_patterns TEXT[] NOT NULL DEFAULT '{}',
    formatting_preferences JSONB NOT NULL DEFAULT '{}',
    unique_characteristics TEXT[] NOT NULL DEFAULT '{}',
    samples_count INTEGER NOT NULL DEFAULT 0,
    source TEXT NOT NULL DEFAULT 'default',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (s *pgVoiceProfileStore) Get(ctx context.Context, userID string) (persistence.VoiceProfile, error) {
	row := s.pool.QueryRow(ctx, `
SELECT user_id, tone, style, vocabulary_level, personality_traits, writing_patterns,
       formatting_preferences, unique_characteristics, samples_count, source, updated_at
FROM voice_profiles WHERE user_id=$1`, userID)
	var v persistence.VoiceProfile
	var fmtJSON []byte
	err := row.Scan(&v.UserID, &v.Tone, &v.Style, &v.VocabularyLevel, &v.PersonalityTraits, &v.WritingPatterns,
		&fmtJSON, &v.UniqueCharacteristics, &v.SamplesCount, &v.Source, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.VoiceProfile{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.VoiceProfile{}, err
	}
	_ = json.Unmarshal(fmtJSON, &v.FormattingPreferences)
	return v, nil
}

func (s *pgVoiceProfileStore) Upsert(ctx context.Context, v persistence.VoiceProfile) (persistence.VoiceProfile, error) {
	v.UpdatedAt = time.Now().UTC()
	fmtJSON, err := json.Marshal(nonNilMap(v.FormattingPreferences))
	if err != nil {
		return persistence.VoiceProfile{}, err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO voice_profiles (user_id, tone, style, vocabulary_level, personality_traits, writing_patterns,
    formatting_preferences, unique_characteristics, samples_count, source, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (user_id) DO UPDATE SET
    tone = EXCLUDED.tone,
    style = EXCLUDED.style,
    vocabulary_level = EXCLUDED.vocabulary_level,
    personality_traits = EXCLUDED.personality_traits,
    writing_patterns = EXCLUDED.writing_patterns,
    formatting_preferences = EXCLUDED.formatting_preferences,
    unique_characteristics = EXCLUDED.unique_characteristics,
    samples_count = EXCLUDED.samples_count,
    source = EXCLUDED.source,
    updated_at = EXCLUDED.updated_at`,
		v.UserID, v.Tone, v.Style, v.VocabularyLevel, v.PersonalityTraits, v.WritingPatterns,
		fmtJSON, v.UniqueCharacteristics, v.SamplesCount, v.Source, v.UpdatedAt)
	if err != nil {
		return persistence.VoiceProfile{}, err
	}
	return v, nil
}

// --- Memory ---

type memVoiceProfileStore struct {
	mu       sync.Mutex
	profiles map[string]persistence.VoiceProfile
}

func newMemoryVoiceProfileStore() *memVoiceProfileStore {
	return &memVoiceProfileStore{profiles: make(map[string]persistence.VoiceProfile)}
}

func (s *memVoiceProfileStore) Init(ctx context.Context) error { return nil }

func (s *memVoiceProfileStore) Get(ctx context.Context, userID string) (persistence.VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.profiles[userID]
	if !ok {
		return persistence.VoiceProfile{}, persistence.ErrNotFound
	}
	return v, nil
}

func (s *memVoiceProfileStore) Upsert(ctx context.Context, v persistence.VoiceProfile) (persistence.VoiceProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.UpdatedAt = time.Now().UTC()
	s.profiles[v.UserID] = v
	return v, nil
}
