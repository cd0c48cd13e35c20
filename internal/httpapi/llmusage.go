package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// handleLLMUsageSummary reports today's and this month's token spend plus
// both rate-limit windows in one call, the shape a usage dashboard needs
// without issuing four separate requests.
func (s *Server) handleLLMUsageSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	now := time.Now().UTC()

	today, err := s.DB.LLMUsage.ListUsage(ctx, userID, startOfDay(now))
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	month, err := s.DB.LLMUsage.ListUsage(ctx, userID, startOfMonth(now))
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	minuteLimit, _, err := s.DB.LLMUsage.GetRateLimit(ctx, userID, llmgateway.LimitTypeMinute)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	dayLimit, _, err := s.DB.LLMUsage.GetRateLimit(ctx, userID, llmgateway.LimitTypeDay)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tokens_today":         sumTokens(today),
		"tokens_this_month":    sumTokens(month),
		"requests_today":       len(today),
		"requests_this_month":  len(month),
		"rate_limit_minute":    minuteLimit,
		"rate_limit_day":       dayLimit,
	})
}

func (s *Server) handleLLMUsageStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	logs, err := s.DB.LLMUsage.ListUsage(ctx, userID, since)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}

	byModel := map[string]int64{}
	errorCount := 0
	for _, l := range logs {
		byModel[l.Model] += l.TokensTotal
		if l.Status != "success" {
			errorCount++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"days":             days,
		"request_count":    len(logs),
		"tokens_total":     sumTokens(logs),
		"error_count":      errorCount,
		"tokens_by_model":  byModel,
	})
}

func (s *Server) handleLLMUsageLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	logs, err := s.DB.LLMUsage.ListUsage(ctx, userID, since)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleLLMRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	minuteLimit, _, err := s.DB.LLMUsage.GetRateLimit(ctx, userID, llmgateway.LimitTypeMinute)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	dayLimit, _, err := s.DB.LLMUsage.GetRateLimit(ctx, userID, llmgateway.LimitTypeDay)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"minute": minuteLimit,
		"day":    dayLimit,
	})
}

func sumTokens(logs []persistence.LLMUsageLog) int64 {
	var total int64
	for _, l := range logs {
		total += l.TokensTotal
	}
	return total
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
