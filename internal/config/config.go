// Package config defines CreatorPulse's runtime configuration: database and
// cache connection settings, LLM provider credentials, SMTP settings, and
// the feature knobs the spec calls out (crawl cadence, rate-limit defaults,
// daily email caps).
package config

import "time"

// DatabaseConfig configures the Postgres row store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

// RedisConfig configures the Redis-backed hot-row fast path: LLM rate-limit
// counters and the per-user crawl lease described in SPEC_FULL.md §3/§5.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ClickHouseConfig configures the analytics mirror for LLMUsageLog and
// EmailDeliveryLog.
type ClickHouseConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DSN            string `yaml:"dsn"`
	Database       string `yaml:"database"`
	UsageTable     string `yaml:"usage_table"`
	DeliveryTable  string `yaml:"delivery_table"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// KafkaConfig configures the optional Kafka-backed event bus. When disabled
// the scheduler and email delivery subsystem fall back to an in-process
// channel bus with the same interface.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// S3Config configures the blob store backing voice-sample uploads.
type S3Config struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Region  string `yaml:"region"`
	Prefix  string `yaml:"prefix"`
}

// QdrantConfig configures the optional vector store used by the trend
// detector to collapse near-duplicate content before summarization.
type QdrantConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
}

// AnthropicConfig, OpenAIConfig, and GoogleConfig hold per-provider
// credentials for the LLM gateway's provider table.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type GoogleConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// RateLimitDefaults are the gateway's safe caps applied when neither a
// per-user row nor a global override exists (spec.md §4.4 "Defaults").
type RateLimitDefaults struct {
	PerMinute int64 `yaml:"per_minute"`
	PerDay    int64 `yaml:"per_day"`
}

// SMTPConfig configures the outbound mail relay used by C11/C12.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// EmailConfig holds the delivery caps and tracking-endpoint base URL.
type EmailConfig struct {
	DailyCapDefault    int    `yaml:"daily_cap_default"`
	DailyCapWorkspace  int    `yaml:"daily_cap_workspace"`
	TrackingBaseURL    string `yaml:"tracking_base_url"`
	UnsubscribeBaseURL string `yaml:"unsubscribe_base_url"`
	// TrackingSecret signs the recipient-specific tokens carried by the
	// tracking pixel, click-redirect, and one-click unsubscribe links.
	TrackingSecret string `yaml:"tracking_secret"`
}

// CrawlConfig holds orchestrator concurrency defaults.
type CrawlConfig struct {
	MaxConcurrentUsers int           `yaml:"max_concurrent_users"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
}

// SchedulerConfig holds the reconciliation tick period.
type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// ObsConfig configures OpenTelemetry tracing/metrics export.
type ObsConfig struct {
	OTLP           string `yaml:"otlp"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

// Config is the top-level configuration for the creatorpulse process.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`

	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	S3         S3Config         `yaml:"s3"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`

	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Google    GoogleConfig    `yaml:"google"`

	RateLimitDefaults RateLimitDefaults `yaml:"rate_limit_defaults"`

	SMTP  SMTPConfig  `yaml:"smtp"`
	Email EmailConfig `yaml:"email"`

	Crawl     CrawlConfig     `yaml:"crawl"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	OTel ObsConfig `yaml:"otel"`
}

// applyDefaults fills in zero-valued fields that must never end up 0 or ""
// at runtime, matching the teacher's "read env/yaml, then backfill defaults"
// two-pass style.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 8
	}
	if c.Database.MaxConnLifetime == 0 {
		c.Database.MaxConnLifetime = time.Hour
	}
	if c.RateLimitDefaults.PerMinute == 0 {
		c.RateLimitDefaults.PerMinute = 1000
	}
	if c.RateLimitDefaults.PerDay == 0 {
		c.RateLimitDefaults.PerDay = 1000
	}
	if c.Email.DailyCapDefault == 0 {
		c.Email.DailyCapDefault = 450
	}
	if c.Email.DailyCapWorkspace == 0 {
		c.Email.DailyCapWorkspace = 1950
	}
	if c.Crawl.MaxConcurrentUsers == 0 {
		c.Crawl.MaxConcurrentUsers = 8
	}
	if c.Crawl.HTTPTimeout == 0 {
		c.Crawl.HTTPTimeout = 30 * time.Second
	}
	if c.Scheduler.ReconcileInterval == 0 {
		c.Scheduler.ReconcileInterval = 30 * time.Minute
	}
	if c.OTel.ServiceName == "" {
		c.OTel.ServiceName = "creatorpulse"
	}
	if c.ClickHouse.UsageTable == "" {
		c.ClickHouse.UsageTable = "llm_usage_logs"
	}
	if c.ClickHouse.DeliveryTable == "" {
		c.ClickHouse.DeliveryTable = "email_delivery_logs"
	}
}
