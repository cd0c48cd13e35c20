package persistence

import (
	"context"
	"io"
	"time"
)

// UserStore manages user identities and their crawl schedule rows.
type UserStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, userID string) (User, error)
	// ListAll returns every user in a stable order — the scheduler's draft
	// job reconciliation walks this set regardless of whether a user owns
	// any active source.
	ListAll(ctx context.Context) ([]User, error)
	GetSchedule(ctx context.Context, userID string) (CrawlSchedule, error)
	// TryBeginCrawl atomically flips is_crawling to true if currently false,
	// returning ErrAlreadyCrawling if a batch is already in progress.
	TryBeginCrawl(ctx context.Context, userID string) error
	EndCrawl(ctx context.Context, userID string, sourceCount, itemCount int, duration time.Duration, nextCrawlAt time.Time) error
}

// SourceStore manages per-user content sources.
type SourceStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, s Source) (Source, error)
	Get(ctx context.Context, userID, sourceID string) (Source, error)
	ListByUser(ctx context.Context, userID string) ([]Source, error)
	// ListUsersWithActiveSources returns the distinct user ids owning at
	// least one source with status=active, in a stable order — the crawl
	// orchestrator's batch entry point iterates exactly this set.
	ListUsersWithActiveSources(ctx context.Context) ([]string, error)
	Update(ctx context.Context, s Source) (Source, error)
	SetStatus(ctx context.Context, sourceID, status, errorMessage string) error
	SetLastCrawledAt(ctx context.Context, sourceID string, at time.Time) error
	Delete(ctx context.Context, userID, sourceID string) error
}

// ContentItemStore manages fetched content, deduplicated by (source, url).
type ContentItemStore interface {
	Init(ctx context.Context) error
	// Upsert inserts the item if (source_id, url) is new, returning
	// (item, true) when a new row was created, or the existing row and
	// false when it already existed (the delta-dedup path).
	Upsert(ctx context.Context, item ContentItem) (ContentItem, bool, error)
	Get(ctx context.Context, itemID string) (ContentItem, error)
	ListBySource(ctx context.Context, sourceID string, since *time.Time) ([]ContentItem, error)
	ListByUser(ctx context.Context, userID string, since *time.Time) ([]ContentItem, error)
}

// TrendStore manages detected trends per user per run.
type TrendStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, t Trend) (Trend, error)
	LatestForUser(ctx context.Context, userID string, limit int) ([]Trend, error)
}

// SummaryStore manages generated content summaries, keyed by
// (content_id, summary_type).
type SummaryStore interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, contentID, summaryType string) (ContentSummary, error)
	Upsert(ctx context.Context, s ContentSummary) (ContentSummary, error)
}

// DraftStore manages the single materialized newsletter draft per user.
type DraftStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, d Draft) (Draft, error)
	Get(ctx context.Context, draftID string) (Draft, error)
	GetLatestForUser(ctx context.Context, userID string) (Draft, error)
	Update(ctx context.Context, d Draft) (Draft, error)
	// SetStatus performs a compare-and-swap transition guarded by
	// Draft.CanTransitionTo, returning ErrRevisionConflict if the current
	// status no longer permits the transition.
	SetStatus(ctx context.Context, draftID, status string) (Draft, error)
	MarkEmailSent(ctx context.Context, draftID string, at time.Time) error
	Delete(ctx context.Context, draftID string) error
}

// VoiceProfileStore manages the single voice profile per user.
type VoiceProfileStore interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, userID string) (VoiceProfile, error)
	Upsert(ctx context.Context, v VoiceProfile) (VoiceProfile, error)
}

// FeedbackStore manages draft/section feedback.
type FeedbackStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, f Feedback) (Feedback, error)
	Get(ctx context.Context, id string) (Feedback, error)
	ListByDraft(ctx context.Context, draftID string) ([]Feedback, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Feedback, error)
	Update(ctx context.Context, f Feedback) (Feedback, error)
	Delete(ctx context.Context, id string) error
}

// LLMUsageStore appends usage log rows and tracks per-(user, limit_type)
// rate-limit counters.
type LLMUsageStore interface {
	Init(ctx context.Context) error
	AppendUsage(ctx context.Context, log LLMUsageLog) error
	// ListUsage returns a user's usage log rows created at or after since,
	// most recent first.
	ListUsage(ctx context.Context, userID string, since time.Time) ([]LLMUsageLog, error)
	GetRateLimit(ctx context.Context, userID, limitType string) (LLMRateLimit, bool, error)
	// IncrementRateLimit atomically increments current_count if it would
	// stay <= limit_value, resetting the counter first if resetAt has
	// passed. Returns the post-increment row and ok=false if the limit is
	// already exhausted.
	IncrementRateLimit(ctx context.Context, userID, limitType string, limitValue int64, resetAt time.Time) (LLMRateLimit, bool, error)
}

// EmailDeliveryStore manages delivery logs, the per-user daily counter,
// the unsubscribe suppression set, and the recipient list.
type EmailDeliveryStore interface {
	Init(ctx context.Context) error
	AppendLog(ctx context.Context, log EmailDeliveryLog) (EmailDeliveryLog, error)
	UpdateLogStatus(ctx context.Context, logID, status, errMsg string) (EmailDeliveryLog, error)
	IncrementRetry(ctx context.Context, logID string) (EmailDeliveryLog, error)
	// ListLogsByUser returns a user's delivery log rows, most recent first,
	// for the delivery-logs/stats endpoints.
	ListLogsByUser(ctx context.Context, userID string, limit int) ([]EmailDeliveryLog, error)
	// ListLogsByDraft returns every delivery attempt recorded against one
	// draft, in send order, backing per-draft tracking stats.
	ListLogsByDraft(ctx context.Context, draftID string) ([]EmailDeliveryLog, error)

	GetDailyLimit(ctx context.Context, userID string, limitValue int, resetAt time.Time) (EmailRateLimit, bool, error)
	IncrementDaily(ctx context.Context, userID string, limitValue int, resetAt time.Time) (EmailRateLimit, bool, error)

	IsUnsubscribed(ctx context.Context, userID, email string) (bool, error)
	Unsubscribe(ctx context.Context, userID, email string) error

	ListRecipients(ctx context.Context, userID string) ([]Recipient, error)
	UpsertRecipient(ctx context.Context, r Recipient) (Recipient, error)
	DeleteRecipient(ctx context.Context, userID, recipientID string) error
}

// TrackingEventStore records newsletter open/click events and serves the
// per-draft stats the tracking pixel and click-redirect endpoints feed.
type TrackingEventStore interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, e TrackingEvent) error
	Stats(ctx context.Context, draftID string) (TrackingStats, error)
}

// PreferencesStore manages the raw partial-override JSON document a user
// has actually saved. The preferences resolver deep-merges this against a
// fixed defaults document on every read — Get returns ErrNotFound when the
// user has never saved an override, which the resolver treats as "use pure
// defaults" rather than a failure.
type PreferencesStore interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, userID string) (map[string]any, error)
	Put(ctx context.Context, userID string, document map[string]any) error
	Delete(ctx context.Context, userID string) error
}

// BlobStore stores free-form binary objects such as uploaded voice samples.
type BlobStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader, size int64, metadata map[string]any) (BlobRef, error)
	Get(ctx context.Context, key string) (io.ReadCloser, BlobRef, error)
	Delete(ctx context.Context, key string) error
}

// VoiceSampleStore indexes the voice-sample blobs a user has uploaded.
type VoiceSampleStore interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, s VoiceSample) (VoiceSample, error)
	ListByUser(ctx context.Context, userID string) ([]VoiceSample, error)
	Get(ctx context.Context, userID, sampleID string) (VoiceSample, error)
	Delete(ctx context.Context, userID, sampleID string) error
}

// VectorResult is a single hit from VectorStore.SimilaritySearch.
type VectorResult struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// VectorStore holds content-item embeddings so the trend detector can find
// near-duplicate items across sources before clustering them into a trend.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)
	Dimension() int
	Close() error
}
