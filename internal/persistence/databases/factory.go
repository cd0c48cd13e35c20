package databases

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// Manager bundles every store CreatorPulse's services depend on. When
// cfg.Database.DSN is empty all stores fall back to in-memory
// implementations, which is what the test suite and local development run
// against; production wires a Postgres pool plus the optional Redis,
// ClickHouse, S3 and Qdrant backends.
type Manager struct {
	Pool *pgxpool.Pool

	Users        persistence.UserStore
	Sources      persistence.SourceStore
	Content      persistence.ContentItemStore
	Trends       persistence.TrendStore
	Summaries    persistence.SummaryStore
	Drafts       persistence.DraftStore
	Voice        persistence.VoiceProfileStore
	VoiceSamples persistence.VoiceSampleStore
	Feedback     persistence.FeedbackStore
	LLMUsage     persistence.LLMUsageStore
	Email        persistence.EmailDeliveryStore
	Tracking     persistence.TrackingEventStore
	Blobs        persistence.BlobStore
	Vectors      persistence.VectorStore
	Preferences  persistence.PreferencesStore

	HotRow    *HotRowCache
	Analytics *AnalyticsMirror
}

// NewManager wires every store named in Manager from cfg. It opens a
// Postgres pool only when cfg.Database.DSN is set; otherwise every
// relational store runs against memory.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	m := &Manager{}

	if dsn := cfg.Database.DSN; dsn != "" {
		pool, err := OpenPool(ctx, dsn, cfg.Database.MaxConns, cfg.Database.MaxConnLifetime)
		if err != nil {
			return nil, fmt.Errorf("open postgres pool: %w", err)
		}
		m.Pool = pool
	}

	m.Users = NewUserStore(m.Pool)
	m.Sources = NewSourceStore(m.Pool)
	m.Content = NewContentItemStore(m.Pool)
	m.Trends = NewTrendStore(m.Pool)
	m.Summaries = NewSummaryStore(m.Pool)
	m.Drafts = NewDraftStore(m.Pool)
	m.Voice = NewVoiceProfileStore(m.Pool)
	m.VoiceSamples = NewVoiceSampleStore(m.Pool)
	m.Feedback = NewFeedbackStore(m.Pool)
	m.LLMUsage = NewLLMUsageStore(m.Pool)
	m.Email = NewEmailDeliveryStore(m.Pool)
	m.Tracking = NewTrackingEventStore(m.Pool)
	m.Preferences = NewPreferencesStore(m.Pool)

	blobs, err := NewBlobStore(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	m.Blobs = blobs

	vectors, err := NewVectorStore(ctx, cfg.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	m.Vectors = vectors

	hotRow, err := NewHotRowCache(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis hot-row cache: %w", err)
	}
	m.HotRow = hotRow

	analytics, err := NewAnalyticsMirror(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("init clickhouse analytics mirror: %w", err)
	}
	m.Analytics = analytics

	if err := m.initAll(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initAll(ctx context.Context) error {
	inits := []func(context.Context) error{
		m.Users.Init,
		m.Sources.Init,
		m.Content.Init,
		m.Trends.Init,
		m.Summaries.Init,
		m.Drafts.Init,
		m.Voice.Init,
		m.VoiceSamples.Init,
		m.Feedback.Init,
		m.LLMUsage.Init,
		m.Email.Init,
		m.Tracking.Init,
		m.Preferences.Init,
	}
	for _, init := range inits {
		if err := init(ctx); err != nil {
			return fmt.Errorf("init store: %w", err)
		}
	}
	return nil
}

// Close releases every pooled connection the manager opened. Individual
// stores hold no resources of their own beyond what Manager tracks here.
func (m *Manager) Close() error {
	if m.HotRow != nil {
		_ = m.HotRow.Close()
	}
	if m.Analytics != nil {
		_ = m.Analytics.Close()
	}
	if m.Vectors != nil {
		_ = m.Vectors.Close()
	}
	if m.Pool != nil {
		m.Pool.Close()
	}
	return nil
}
