package httpapi

import (
	"net/http"
)

// handleTriggerCrawl runs one crawl batch synchronously for a single user,
// through the same CrawlUser path the eventbus crawl-tick consumer uses —
// not a manual per-source loop — so the is_crawling mutex, lease, and
// schedule bookkeeping CrawlUser performs are never bypassed.
func (s *Server) handleTriggerCrawl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	result := s.Crawler.CrawlUser(ctx, userID)
	respondJSON(w, http.StatusOK, map[string]any{
		"skipped":         result.Skipped,
		"sources_crawled": result.SourceCount,
		"items_fetched":   result.ItemsFetched,
		"items_new":       result.ItemsNew,
		"duration_ms":     result.Duration.Milliseconds(),
	})
}

func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	schedule, err := s.DB.Users.GetSchedule(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, schedule)
}
