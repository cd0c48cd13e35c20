package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/creatorpulse/creatorpulse/internal/eventbus"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

// emailSendJob is the payload queued onto eventbus.TopicEmailSend by
// handlePublishDraft; the send worker pool consumes it at the per-user
// daily-cap pace instead of running it inline in the request.
type emailSendJob struct {
	UserID          string `json:"user_id"`
	DraftID         string `json:"draft_id"`
	SubjectOverride string `json:"subject_override"`
}

func (s *Server) handleGenerateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	topicCount, _ := strconv.Atoi(r.URL.Query().Get("topic_count"))
	daysBack, _ := strconv.Atoi(r.URL.Query().Get("days_back"))
	d, err := s.Drafts.Generate(ctx, userID, topicCount, daysBack)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// handleListDrafts returns the user's single materialized draft wrapped in
// a list, matching DraftStore's one-draft-per-user model while still
// satisfying the named "list" operation.
func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	d, err := s.DB.Drafts.GetLatestForUser(ctx, userID)
	if errors.Is(err, persistence.ErrNotFound) {
		respondJSON(w, http.StatusOK, map[string]any{"drafts": []persistence.Draft{}})
		return
	}
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"drafts": []persistence.Draft{d}})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.PathValue("draftID")
	d, err := s.DB.Drafts.Get(ctx, draftID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDraftSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.PathValue("draftID")
	existing, err := s.DB.Drafts.Get(ctx, draftID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	var payload struct {
		Sections []persistence.DraftSection `json:"sections"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	existing.Sections = payload.Sections
	if existing.Status == persistence.DraftStatusReady {
		existing.Status = persistence.DraftStatusEditing
	}
	updated, err := s.DB.Drafts.Update(ctx, existing)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRegenerateDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.PathValue("draftID")
	existing, err := s.DB.Drafts.Get(ctx, draftID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	topicCount, _ := strconv.Atoi(r.URL.Query().Get("topic_count"))
	daysBack, _ := strconv.Atoi(r.URL.Query().Get("days_back"))
	d, err := s.Drafts.Generate(ctx, existing.UserID, topicCount, daysBack)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handlePublishDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.PathValue("draftID")
	d, err := s.DB.Drafts.Get(ctx, draftID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	if !d.CanTransitionTo(persistence.DraftStatusPublished) {
		respondError(w, http.StatusConflict, persistence.ErrRevisionConflict)
		return
	}

	var payload struct {
		SubjectOverride string `json:"subject_override"`
	}
	_ = decodeJSON(r, &payload)

	published, err := s.DB.Drafts.SetStatus(ctx, draftID, persistence.DraftStatusPublished)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}

	job, _ := json.Marshal(emailSendJob{UserID: d.UserID, DraftID: draftID, SubjectOverride: payload.SubjectOverride})
	if err := s.Bus.Publish(ctx, eventbus.TopicEmailSend, draftID, job); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"draft": published, "queued": true})
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.PathValue("draftID")
	if err := s.DB.Drafts.Delete(ctx, draftID); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDraftDebug reports content/trend/voice-sample counts and whether a
// draft can currently be generated, per the external-interface debug
// endpoint requirement.
func (s *Server) handleDraftDebug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")

	content, err := s.DB.Content.ListByUser(ctx, userID, nil)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	trends, err := s.DB.Trends.LatestForUser(ctx, userID, 50)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	samples, err := s.DB.VoiceSamples.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"content_item_count": len(content),
		"trend_count":        len(trends),
		"voice_sample_count": len(samples),
		"can_generate":       len(content) > 0,
	})
}
