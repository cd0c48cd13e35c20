// Package persistence defines the storage-facing types and interfaces for
// every entity in the content pipeline. Each store has two implementations
// under persistence/databases: an in-memory one for tests and single-node
// development, and a Postgres-backed one for production, selected by
// whether a *pgxpool.Pool is supplied to the store's constructor.
package persistence

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("persistence: not found")
	ErrForbidden        = errors.New("persistence: forbidden")
	ErrAlreadyExists    = errors.New("persistence: already exists")
	ErrRevisionConflict = errors.New("persistence: revision conflict")
	ErrAlreadyCrawling  = errors.New("persistence: crawl already in progress")
)

// User is an account identity plus its batch-schedule bookkeeping.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CrawlSchedule is the single per-user row tracking batch-crawl cadence and
// the mutual-exclusion flag preventing overlapping crawls.
type CrawlSchedule struct {
	UserID                   string     `json:"user_id"`
	LastBatchCrawlAt         *time.Time `json:"last_batch_crawl_at,omitempty"`
	NextScheduledCrawlAt     *time.Time `json:"next_scheduled_crawl_at,omitempty"`
	IsCrawling               bool       `json:"is_crawling"`
	CrawlFrequencyHours      int        `json:"crawl_frequency_hours"`
	LastRunSourceCount       int        `json:"last_run_source_count"`
	LastRunItemCount         int        `json:"last_run_item_count"`
	LastCrawlDurationSeconds float64    `json:"last_crawl_duration_seconds"`
}

const DefaultCrawlFrequencyHours = 24

// Source status values.
const (
	SourceStatusActive  = "active"
	SourceStatusError   = "error"
	SourceStatusPending = "pending"
)

// Source is a single content feed a user has connected.
type Source struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Kind          string            `json:"kind"`
	Name          string            `json:"name"`
	URL           string            `json:"url,omitempty"`
	Config        map[string]any    `json:"config,omitempty"`
	Credentials   map[string]string `json:"credentials,omitempty"`
	Status        string            `json:"status"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	LastCrawledAt *time.Time        `json:"last_crawled_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ContentItem is a single fetched piece of content, deduplicated by
// (source_id, url).
type ContentItem struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	UserID      string         `json:"user_id"`
	ContentType string         `json:"content_type"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	URL         string         `json:"url"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Trend is a topic surfaced by a single detection run for a user.
type Trend struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Topic             string    `json:"topic"`
	Score             float64   `json:"score"`
	SupportingItemIDs []string  `json:"supporting_item_ids"`
	DetectedAt        time.Time `json:"detected_at"`
}

const (
	SummaryTypeBrief    = "brief"
	SummaryTypeStandard = "standard"
	SummaryTypeDetailed = "detailed"
)

// ContentSummary is a generated summary of a single content item, keyed by
// (content_id, summary_type).
type ContentSummary struct {
	ContentID      string         `json:"content_id"`
	SummaryType    string         `json:"summary_type"`
	Title          string         `json:"title"`
	KeyPoints      []string       `json:"key_points"`
	Summary        string         `json:"summary"`
	Topics         []string       `json:"topics,omitempty"`
	Sentiment      string         `json:"sentiment,omitempty"`
	RelevanceScore float64        `json:"relevance_score,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Draft statuses form a small state machine: generating -> ready|failed,
// ready -> editing|published, editing -> ready|published.
const (
	DraftStatusGenerating = "generating"
	DraftStatusReady      = "ready"
	DraftStatusEditing    = "editing"
	DraftStatusPublished  = "published"
	DraftStatusFailed     = "failed"
)

// DraftSectionType values.
const (
	DraftSectionIntro      = "intro"
	DraftSectionTopic      = "topic"
	DraftSectionConclusion = "conclusion"
)

type DraftSection struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Draft is the single newsletter draft materialized per user per run.
type Draft struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title"`
	Sections     []DraftSection `json:"sections"`
	Status       string         `json:"status"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	EmailSent    bool           `json:"email_sent"`
	EmailSentAt  *time.Time     `json:"email_sent_at,omitempty"`
}

// CanTransitionTo reports whether the draft's status may move to next,
// matching the state machine described in the data model.
func (d Draft) CanTransitionTo(next string) bool {
	switch d.Status {
	case DraftStatusGenerating:
		return next == DraftStatusReady || next == DraftStatusFailed
	case DraftStatusReady:
		return next == DraftStatusEditing || next == DraftStatusPublished
	case DraftStatusEditing:
		return next == DraftStatusReady || next == DraftStatusPublished
	default:
		return false
	}
}

// VoiceProfile source discriminants. Only "analyzed" is a usable,
// personalized voice; every other value is a default the draft generator
// must not treat as personalized.
const (
	VoiceSourceAnalyzed      = "analyzed"
	VoiceSourceDefault       = "default"
	VoiceSourceDefaultError  = "default_error"
	VoiceSourceDefaultFallback = "default_fallback"
)

type VoiceProfile struct {
	UserID                string         `json:"user_id"`
	Tone                  string         `json:"tone"`
	Style                 string         `json:"style"`
	VocabularyLevel       string         `json:"vocabulary_level"`
	PersonalityTraits     []string       `json:"personality_traits"`
	WritingPatterns       []string       `json:"writing_patterns"`
	FormattingPreferences map[string]any `json:"formatting_preferences,omitempty"`
	UniqueCharacteristics []string       `json:"unique_characteristics"`
	SamplesCount          int            `json:"samples_count"`
	Source                string         `json:"source"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// IsUsable reports whether this profile represents a real, analyzed voice.
func (v VoiceProfile) IsUsable() bool {
	return v.Source == VoiceSourceAnalyzed
}

const (
	FeedbackThumbsUp   = "thumbs_up"
	FeedbackThumbsDown = "thumbs_down"
)

type Feedback struct {
	ID        string    `json:"id"`
	DraftID   string    `json:"draft_id"`
	SectionID string    `json:"section_id,omitempty"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type LLMUsageLog struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Model           string         `json:"model"`
	TokensTotal     int64          `json:"tokens_total"`
	TokensPrompt    int64          `json:"tokens_prompt"`
	TokensCompletion int64         `json:"tokens_completion"`
	DurationMS      int64          `json:"duration_ms"`
	Status          string         `json:"status"`
	Error           string         `json:"error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// LLMRateLimit is the counter row per (user, limit_type): minute, day, etc.
type LLMRateLimit struct {
	UserID       string    `json:"user_id"`
	LimitType    string    `json:"limit_type"`
	CurrentCount int64     `json:"current_count"`
	LimitValue   int64     `json:"limit_value"`
	ResetAt      time.Time `json:"reset_at"`
}

const (
	EmailStatusQueued  = "queued"
	EmailStatusSending = "sending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

const MaxEmailRetries = 3

type EmailDeliveryLog struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	DraftID     string         `json:"draft_id"`
	RecipientID string         `json:"recipient_id"`
	Status      string         `json:"status"`
	RetryCount  int            `json:"retry_count"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// EmailRateLimit is the per-user daily send counter, reset at midnight UTC.
type EmailRateLimit struct {
	UserID       string    `json:"user_id"`
	CurrentCount int       `json:"current_count"`
	LimitValue   int       `json:"limit_value"`
	ResetAt      time.Time `json:"reset_at"`
}

// Unsubscribe is a global-per-user suppression entry.
type Unsubscribe struct {
	UserID         string    `json:"user_id"`
	RecipientEmail string    `json:"recipient_email"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	RecipientStatusActive      = "active"
	RecipientStatusUnsubscribed = "unsubscribed"
)

type Recipient struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	TrackingEventOpen  = "open"
	TrackingEventClick = "click"
)

// TrackingEvent records one open or click against a sent newsletter, keyed
// by the (draft, recipient) pair carried in the tracking pixel/redirect
// link's token.
type TrackingEvent struct {
	ID          string    `json:"id"`
	DraftID     string    `json:"draft_id"`
	RecipientID string    `json:"recipient_id"`
	Type        string    `json:"type"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TrackingStats summarizes the tracking events recorded for one draft.
type TrackingStats struct {
	DraftID      string `json:"draft_id"`
	Opens        int    `json:"opens"`
	Clicks       int    `json:"clicks"`
	UniqueOpens  int    `json:"unique_opens"`
	UniqueClicks int    `json:"unique_clicks"`
}

// BlobRef points at a stored binary object (e.g. an uploaded voice sample).
type BlobRef struct {
	Key         string         `json:"key"`
	ContentType string         `json:"content_type"`
	Size        int64          `json:"size"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// VoiceSample indexes one uploaded writing sample blob against the user it
// belongs to, so the HTTP surface can list and delete a user's samples
// without BlobStore itself needing to support prefix listing.
type VoiceSample struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	BlobKey     string    `json:"blob_key"`
	Filename    string    `json:"filename,omitempty"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
