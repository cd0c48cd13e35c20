package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var f persistence.Feedback
	if err := decodeJSON(r, &f); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	created, err := s.DB.Feedback.Create(ctx, f)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListFeedbackByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.DB.Feedback.ListByUser(ctx, userID, limit)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"feedback": items})
}

func (s *Server) handleListFeedbackByDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.PathValue("draftID")
	items, err := s.DB.Feedback.ListByDraft(ctx, draftID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"feedback": items})
}

// handleFeedbackStats reports the thumbs-up rate over a user's recent
// feedback, the same rows internal/feedback.Analyzer reads to synthesize
// liked/disliked aspects and recommendations.
func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.DB.Feedback.ListByUser(ctx, userID, limit)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	up := 0
	for _, f := range items {
		if f.Type == persistence.FeedbackThumbsUp {
			up++
		}
	}
	rate := 0.0
	if len(items) > 0 {
		rate = float64(up) / float64(len(items))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":         len(items),
		"thumbs_up":     up,
		"thumbs_down":   len(items) - up,
		"positive_rate": rate,
	})
}

func (s *Server) handleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feedbackID := r.PathValue("feedbackID")
	existing, err := s.DB.Feedback.Get(ctx, feedbackID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	var patch persistence.Feedback
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	patch.ID = existing.ID
	patch.DraftID = existing.DraftID
	patch.UserID = existing.UserID
	updated, err := s.DB.Feedback.Update(ctx, patch)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feedbackID := r.PathValue("feedbackID")
	if err := s.DB.Feedback.Delete(ctx, feedbackID); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
