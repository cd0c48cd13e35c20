package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables (optionally .env),
// then backfills defaults for anything left unset.
func Load() (Config, error) {
	// Use Overload so .env values override existing OS environment variables,
	// letting local development configuration win deterministically.
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.Host = strings.TrimSpace(firstNonEmpty(envStr("HOST"), "0.0.0.0"))
	cfg.Port = intFromEnv("PORT", 0)
	cfg.LogLevel = envStr("LOG_LEVEL")
	cfg.LogPath = envStr("LOG_PATH")

	cfg.Database.DSN = envStr("DATABASE_DSN")
	cfg.Database.MaxConns = int32(intFromEnv("DATABASE_MAX_CONNS", 0))
	if v := envStr("DATABASE_MAX_CONN_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.MaxConnLifetime = d
		}
	}

	cfg.Redis.Enabled = envBool("REDIS_ENABLED")
	cfg.Redis.Addr = envStr("REDIS_ADDR")
	cfg.Redis.Password = envStr("REDIS_PASSWORD")
	cfg.Redis.DB = intFromEnv("REDIS_DB", 0)

	cfg.ClickHouse.Enabled = envBool("CLICKHOUSE_ENABLED")
	cfg.ClickHouse.DSN = envStr("CLICKHOUSE_DSN")
	cfg.ClickHouse.Database = envStr("CLICKHOUSE_DATABASE")
	cfg.ClickHouse.UsageTable = envStr("CLICKHOUSE_USAGE_TABLE")
	cfg.ClickHouse.DeliveryTable = envStr("CLICKHOUSE_DELIVERY_TABLE")
	cfg.ClickHouse.TimeoutSeconds = intFromEnv("CLICKHOUSE_TIMEOUT_SECONDS", 0)

	cfg.Kafka.Enabled = envBool("KAFKA_ENABLED")
	if v := envStr("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = parseCommaSeparatedList(v)
	}
	cfg.Kafka.GroupID = firstNonEmpty(envStr("KAFKA_GROUP_ID"), "creatorpulse")

	cfg.S3.Enabled = envBool("S3_ENABLED")
	cfg.S3.Bucket = envStr("S3_BUCKET")
	cfg.S3.Region = envStr("S3_REGION")
	cfg.S3.Prefix = envStr("S3_PREFIX")

	cfg.Qdrant.Enabled = envBool("QDRANT_ENABLED")
	cfg.Qdrant.Addr = envStr("QDRANT_ADDR")
	cfg.Qdrant.Collection = firstNonEmpty(envStr("QDRANT_COLLECTION"), "content_items")
	cfg.Qdrant.Dimensions = intFromEnv("QDRANT_DIMENSIONS", 0)

	cfg.Anthropic.APIKey = envStr("ANTHROPIC_API_KEY")
	cfg.Anthropic.Model = envStr("ANTHROPIC_MODEL")
	cfg.OpenAI.APIKey = envStr("OPENAI_API_KEY")
	cfg.OpenAI.BaseURL = envStr("OPENAI_BASE_URL")
	cfg.OpenAI.Model = envStr("OPENAI_MODEL")
	cfg.Google.APIKey = envStr("GOOGLE_API_KEY")
	cfg.Google.Model = envStr("GOOGLE_MODEL")

	cfg.RateLimitDefaults.PerMinute = int64(intFromEnv("RATE_LIMIT_PER_MINUTE", 0))
	cfg.RateLimitDefaults.PerDay = int64(intFromEnv("RATE_LIMIT_PER_DAY", 0))

	cfg.SMTP.Host = envStr("SMTP_HOST")
	cfg.SMTP.Port = intFromEnv("SMTP_PORT", 0)
	cfg.SMTP.Username = envStr("SMTP_USERNAME")
	cfg.SMTP.Password = envStr("SMTP_PASSWORD")
	cfg.SMTP.From = envStr("SMTP_FROM")

	cfg.Email.DailyCapDefault = intFromEnv("EMAIL_DAILY_CAP_DEFAULT", 0)
	cfg.Email.DailyCapWorkspace = intFromEnv("EMAIL_DAILY_CAP_WORKSPACE", 0)
	cfg.Email.TrackingBaseURL = envStr("EMAIL_TRACKING_BASE_URL")
	cfg.Email.UnsubscribeBaseURL = envStr("EMAIL_UNSUBSCRIBE_BASE_URL")
	cfg.Email.TrackingSecret = envStr("EMAIL_TRACKING_SECRET")

	cfg.Crawl.MaxConcurrentUsers = intFromEnv("CRAWL_MAX_CONCURRENT_USERS", 0)
	if v := envStr("CRAWL_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Crawl.HTTPTimeout = d
		}
	}

	if v := envStr("SCHEDULER_RECONCILE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.ReconcileInterval = d
		}
	}

	cfg.OTel.OTLP = envStr("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTel.ServiceName = envStr("OTEL_SERVICE_NAME")
	cfg.OTel.ServiceVersion = envStr("SERVICE_VERSION")
	cfg.OTel.Environment = envStr("ENVIRONMENT")

	cfg.applyDefaults()
	return cfg, nil
}

func envStr(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseCommaSeparatedList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func intFromEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := parseInt(v); err == nil {
			return n
		}
	}
	return def
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
