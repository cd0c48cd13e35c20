package llmgateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
)

const (
	LimitTypeMinute = "minute"
	LimitTypeDay    = "day"
)

// Gateway is the single funnel every C7/C8/C9/C10 call passes through. It
// enforces both rate-limit windows before dispatching to the provider and
// records the outcome to the usage store (and, best-effort, the ClickHouse
// mirror) regardless of success or failure.
type Gateway struct {
	provider  Provider
	usage     persistence.LLMUsageStore
	hotRow    *databases.HotRowCache
	analytics *databases.AnalyticsMirror
	defaults  config.RateLimitDefaults
}

func New(provider Provider, usage persistence.LLMUsageStore, hotRow *databases.HotRowCache, analytics *databases.AnalyticsMirror, defaults config.RateLimitDefaults) *Gateway {
	return &Gateway{provider: provider, usage: usage, hotRow: hotRow, analytics: analytics, defaults: defaults}
}

// Generate enforces the minute and day rate-limit windows for userID, then
// dispatches to the underlying provider. A call that would exceed either
// window returns cperrors.RateLimit immediately — it never sleeps, per the
// event-loop discipline the scheduler and API handlers depend on.
func (g *Gateway) Generate(ctx context.Context, userID string, req Request) (Response, error) {
	now := time.Now().UTC()

	if ok, err := g.checkAndIncrement(ctx, userID, LimitTypeMinute, g.defaults.PerMinute, nextMinute(now)); err != nil {
		return Response{}, err
	} else if !ok {
		g.record(ctx, userID, req, 0, 0, 0, "rate_limited", "")
		return Response{}, cperrors.RateLimit("llm gateway: per-minute rate limit exceeded")
	}
	if ok, err := g.checkAndIncrement(ctx, userID, LimitTypeDay, g.defaults.PerDay, nextUTCMidnight(now)); err != nil {
		return Response{}, err
	} else if !ok {
		g.record(ctx, userID, req, 0, 0, 0, "rate_limited", "")
		return Response{}, cperrors.RateLimit("llm gateway: daily rate limit exceeded")
	}

	start := time.Now()
	resp, err := g.provider.Generate(ctx, req)
	duration := time.Since(start)
	if err != nil {
		g.record(ctx, userID, req, 0, 0, duration, "failed", err.Error())
		return Response{}, cperrors.LLMGeneration("llm gateway: provider call failed", err)
	}
	g.record(ctx, userID, req, resp.TokensPrompt, resp.TokensCompletion, duration, "success", "")
	return resp, nil
}

// checkAndIncrement prefers the Redis hot-row path when available, falling
// back to the Postgres/memory store's own CAS transaction otherwise.
func (g *Gateway) checkAndIncrement(ctx context.Context, userID, limitType string, limitValue int64, resetAt time.Time) (bool, error) {
	if limitValue <= 0 {
		return true, nil
	}
	if g.hotRow != nil {
		_, ok, err := g.hotRow.IncrementRateLimit(ctx, userID, limitType, limitValue, resetAt)
		if err == nil {
			return ok, nil
		}
		// Redis failure degrades to the durable path rather than failing the call.
	}
	_, ok, err := g.usage.IncrementRateLimit(ctx, userID, limitType, limitValue, resetAt)
	return ok, err
}

// record persists the outcome of one call. The usage log's metadata always
// carries service_name (req.ServiceName) so usage can be sliced by caller,
// merged with any caller-supplied req.Metadata.
func (g *Gateway) record(ctx context.Context, userID string, req Request, promptTokens, completionTokens int, duration time.Duration, status, errMsg string) {
	metadata := make(map[string]any, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["service_name"] = req.ServiceName

	logEntry := persistence.LLMUsageLog{
		ID:               uuid.NewString(),
		UserID:           userID,
		Model:            req.Model,
		TokensPrompt:     int64(promptTokens),
		TokensCompletion: int64(completionTokens),
		TokensTotal:      int64(promptTokens + completionTokens),
		DurationMS:       duration.Milliseconds(),
		Status:           status,
		Error:            errMsg,
		Metadata:         metadata,
		CreatedAt:        time.Now().UTC(),
	}
	_ = g.usage.AppendUsage(ctx, logEntry)
	if g.analytics != nil {
		g.analytics.MirrorUsage(ctx, logEntry)
	}
}

func nextMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute).Add(time.Minute)
}

func nextUTCMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
