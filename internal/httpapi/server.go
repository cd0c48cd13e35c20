// Package httpapi exposes every CreatorPulse operation over HTTP: sources,
// crawl, drafts, voice, feedback, LLM usage, email (including the
// tracking-pixel and click-redirect endpoints), and preferences.
package httpapi

import (
	"net/http"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/connectors"
	"github.com/creatorpulse/creatorpulse/internal/crawl"
	"github.com/creatorpulse/creatorpulse/internal/draft"
	"github.com/creatorpulse/creatorpulse/internal/email"
	"github.com/creatorpulse/creatorpulse/internal/eventbus"
	"github.com/creatorpulse/creatorpulse/internal/feedback"
	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
	"github.com/creatorpulse/creatorpulse/internal/voice"
)

// Server wires every component CreatorPulse's HTTP surface depends on onto
// a single net/http.ServeMux, following the path-pattern routing style of
// a standard Go 1.22+ mux.
type Server struct {
	DB         *databases.Manager
	Connectors *connectors.Registry
	Crawler    *crawl.Orchestrator
	Drafts     *draft.Generator
	Voice      *voice.Analyzer
	Feedback   *feedback.Analyzer
	Delivery   *email.Delivery
	Gateway    *llmgateway.Gateway
	Prefs      *preferences.Resolver
	Bus        eventbus.Bus
	Cfg        config.Config

	mux *http.ServeMux
}

// NewServer builds a Server with every route registered.
func NewServer(deps Server) *Server {
	s := deps
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return &s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	// Sources
	s.mux.HandleFunc("GET /api/v1/source-kinds", s.handleListSourceKinds)
	s.mux.HandleFunc("GET /api/v1/source-kinds/{kind}/credentials", s.handleSourceKindCredentials)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/sources", s.handleCreateSource)
	s.mux.HandleFunc("PUT /api/v1/users/{userID}/sources/{sourceID}", s.handleUpdateSource)
	s.mux.HandleFunc("DELETE /api/v1/users/{userID}/sources/{sourceID}", s.handleDeleteSource)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/sources/{sourceID}/sync", s.handleSyncSource)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/sources/{sourceID}/reactivate", s.handleReactivateSource)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/sources/reactivate-all", s.handleReactivateAllSources)

	// Crawl
	s.mux.HandleFunc("POST /api/v1/users/{userID}/crawl", s.handleTriggerCrawl)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/crawl/status", s.handleCrawlStatus)

	// Drafts
	s.mux.HandleFunc("POST /api/v1/users/{userID}/drafts/generate", s.handleGenerateDraft)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/drafts", s.handleListDrafts)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/drafts/debug", s.handleDraftDebug)
	s.mux.HandleFunc("GET /api/v1/drafts/{draftID}", s.handleGetDraft)
	s.mux.HandleFunc("PUT /api/v1/drafts/{draftID}/sections", s.handleUpdateDraftSections)
	s.mux.HandleFunc("POST /api/v1/drafts/{draftID}/regenerate", s.handleRegenerateDraft)
	s.mux.HandleFunc("POST /api/v1/drafts/{draftID}/publish", s.handlePublishDraft)
	s.mux.HandleFunc("DELETE /api/v1/drafts/{draftID}", s.handleDeleteDraft)

	// Voice
	s.mux.HandleFunc("POST /api/v1/users/{userID}/voice/samples", s.handleUploadVoiceSample)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/voice/samples", s.handleListVoiceSamples)
	s.mux.HandleFunc("DELETE /api/v1/users/{userID}/voice/samples/{sampleID}", s.handleDeleteVoiceSample)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/voice/analyze", s.handleAnalyzeVoice)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/voice/profile", s.handleGetVoiceProfile)

	// Feedback
	s.mux.HandleFunc("POST /api/v1/feedback", s.handleSubmitFeedback)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/feedback", s.handleListFeedbackByUser)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/feedback/stats", s.handleFeedbackStats)
	s.mux.HandleFunc("GET /api/v1/drafts/{draftID}/feedback", s.handleListFeedbackByDraft)
	s.mux.HandleFunc("PUT /api/v1/feedback/{feedbackID}", s.handleUpdateFeedback)
	s.mux.HandleFunc("DELETE /api/v1/feedback/{feedbackID}", s.handleDeleteFeedback)

	// LLM usage
	s.mux.HandleFunc("GET /api/v1/users/{userID}/llm-usage/summary", s.handleLLMUsageSummary)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/llm-usage/stats", s.handleLLMUsageStats)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/llm-usage/logs", s.handleLLMUsageLogs)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/llm-usage/rate-limit", s.handleLLMRateLimitStatus)

	// Email
	s.mux.HandleFunc("POST /api/v1/users/{userID}/email/send", s.handleSendEmail)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/email/rate-limit", s.handleEmailRateLimitStatus)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/email/logs", s.handleEmailLogs)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/email/stats", s.handleEmailStats)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/recipients", s.handleListRecipients)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/recipients", s.handleUpsertRecipient)
	s.mux.HandleFunc("DELETE /api/v1/users/{userID}/recipients/{recipientID}", s.handleDeleteRecipient)
	s.mux.HandleFunc("GET /api/v1/drafts/{draftID}/tracking-stats", s.handleDraftTrackingStats)
	s.mux.HandleFunc("GET /unsubscribe", s.handleUnsubscribePage)
	s.mux.HandleFunc("POST /api/v1/unsubscribe", s.handleUnsubscribeAPI)
	s.mux.HandleFunc("GET /api/v1/unsubscribe/status", s.handleUnsubscribeStatus)
	s.mux.HandleFunc("GET /track/open", s.handleTrackOpen)
	s.mux.HandleFunc("GET /track/click", s.handleTrackClick)

	// Preferences
	s.mux.HandleFunc("GET /api/v1/users/{userID}/preferences", s.handleGetPreferences)
	s.mux.HandleFunc("PATCH /api/v1/users/{userID}/preferences", s.handlePatchPreferences)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/preferences/reset", s.handleResetPreferences)
}
