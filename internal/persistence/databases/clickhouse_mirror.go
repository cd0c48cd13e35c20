package databases

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func sanitizeIdentifier(input string) (string, error) {
	s := strings.TrimSpace(input)
	if !identPattern.MatchString(s) {
		return "", fmt.Errorf("identifier contains invalid characters: %s", s)
	}
	return s, nil
}

// AnalyticsMirror is a best-effort ClickHouse sink for LLMUsageLog and
// EmailDeliveryLog rows. Postgres is the authoritative store; a mirror
// write failure is logged and swallowed so it never blocks the caller.
type AnalyticsMirror struct {
	conn          clickhouse.Conn
	usageTable    string
	deliveryTable string
	timeout       time.Duration
}

// NewAnalyticsMirror connects to ClickHouse when cfg.Enabled, or returns
// nil when disabled — callers check for nil before writing.
func NewAnalyticsMirror(ctx context.Context, cfg config.ClickHouseConfig) (*AnalyticsMirror, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if cfg.Database != "" {
		opts.Auth.Database = cfg.Database
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	usageTable, err := sanitizeIdentifier(cfg.UsageTable)
	if err != nil {
		return nil, fmt.Errorf("invalid usage table: %w", err)
	}
	deliveryTable, err := sanitizeIdentifier(cfg.DeliveryTable)
	if err != nil {
		return nil, fmt.Errorf("invalid delivery table: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Ping(pctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	m := &AnalyticsMirror{conn: conn, usageTable: usageTable, deliveryTable: deliveryTable, timeout: timeout}
	if err := m.init(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AnalyticsMirror) init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.conn.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id String,
    user_id String,
    model String,
    tokens_total Int64,
    status String,
    created_at DateTime
) ENGINE = MergeTree ORDER BY (user_id, created_at)`, m.usageTable)); err != nil {
		return err
	}
	return m.conn.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id String,
    user_id String,
    draft_id String,
    status String,
    retry_count Int32,
    created_at DateTime
) ENGINE = MergeTree ORDER BY (user_id, created_at)`, m.deliveryTable))
}

// MirrorUsage writes a best-effort copy of a usage log row. Failures are
// logged, never returned, so the gateway's hot path never blocks on
// analytics.
func (m *AnalyticsMirror) MirrorUsage(ctx context.Context, l persistence.LLMUsageLog) {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.conn.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, user_id, model, tokens_total, status, created_at) VALUES (?,?,?,?,?,?)`, m.usageTable),
		l.ID, l.UserID, l.Model, l.TokensTotal, l.Status, l.CreatedAt)
	if err != nil {
		log.Warn().Err(err).Msg("clickhouse: failed to mirror llm usage log")
	}
}

// MirrorDelivery writes a best-effort copy of an email delivery log row.
func (m *AnalyticsMirror) MirrorDelivery(ctx context.Context, l persistence.EmailDeliveryLog) {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.conn.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, user_id, draft_id, status, retry_count, created_at) VALUES (?,?,?,?,?,?)`, m.deliveryTable),
		l.ID, l.UserID, l.DraftID, l.Status, l.RetryCount, l.CreatedAt)
	if err != nil {
		log.Warn().Err(err).Msg("clickhouse: failed to mirror email delivery log")
	}
}

func (m *AnalyticsMirror) Close() error {
	if m == nil {
		return nil
	}
	return m.conn.Close()
}
