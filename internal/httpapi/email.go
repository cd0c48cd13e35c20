package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/email"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
)

var trackingPixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00,
	0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02,
	0x44, 0x01, 0x00, 0x3b,
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	var payload struct {
		DraftID         string `json:"draft_id"`
		SubjectOverride string `json:"subject_override"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	recipients, err := s.DB.Email.ListRecipients(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	outcomes, err := s.Delivery.SendNewsletter(ctx, userID, payload.DraftID, recipients, payload.SubjectOverride)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (s *Server) handleEmailRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	dailyCap := s.Cfg.Email.DailyCapDefault
	resetAt := nextUTCMidnight(time.Now().UTC())
	limit, _, err := s.DB.Email.GetDailyLimit(ctx, userID, dailyCap, resetAt)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, limit)
}

func (s *Server) handleEmailLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	limit := 100
	logs, err := s.DB.Email.ListLogsByUser(ctx, userID, limit)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleEmailStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	logs, err := s.DB.Email.ListLogsByUser(ctx, userID, 1000)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	var sent, failed, queued int
	for _, l := range logs {
		switch l.Status {
		case persistence.EmailStatusSent:
			sent++
		case persistence.EmailStatusFailed:
			failed++
		case persistence.EmailStatusQueued:
			queued++
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":  len(logs),
		"sent":   sent,
		"failed": failed,
		"queued": queued,
	})
}

func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	recipients, err := s.DB.Email.ListRecipients(ctx, userID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"recipients": recipients})
}

func (s *Server) handleUpsertRecipient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	var rec persistence.Recipient
	if err := decodeJSON(r, &rec); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	rec.UserID = userID
	if rec.Status == "" {
		rec.Status = persistence.RecipientStatusActive
	}
	saved, err := s.DB.Email.UpsertRecipient(ctx, rec)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteRecipient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userID")
	recipientID := r.PathValue("recipientID")
	if err := s.DB.Email.DeleteRecipient(ctx, userID, recipientID); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDraftTrackingStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.PathValue("draftID")
	stats, err := s.DB.Tracking.Stats(ctx, draftID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleUnsubscribePage serves the one-click landing page the recipient
// token in an email footer links to; submitting it hits handleUnsubscribeAPI.
func (s *Server) handleUnsubscribePage(w http.ResponseWriter, r *http.Request) {
	draftID := r.URL.Query().Get("draft_id")
	recipientID := r.URL.Query().Get("recipient_id")
	token := r.URL.Query().Get("token")
	if !email.ValidToken(s.Cfg.Email.TrackingSecret, draftID, recipientID, token) {
		respondError(w, http.StatusForbidden, errInvalidToken)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html><html><body>
<form method="POST" action="/api/v1/unsubscribe">
<input type="hidden" name="draft_id" value="%s">
<input type="hidden" name="recipient_id" value="%s">
<input type="hidden" name="token" value="%s">
<button type="submit">Unsubscribe</button>
</form>
</body></html>`, draftID, recipientID, token)
}

func (s *Server) handleUnsubscribeAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var draftID, recipientID, token string
	if r.Header.Get("Content-Type") == "application/json" {
		var payload struct {
			DraftID     string `json:"draft_id"`
			RecipientID string `json:"recipient_id"`
			Token       string `json:"token"`
		}
		if err := decodeJSON(r, &payload); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		draftID, recipientID, token = payload.DraftID, payload.RecipientID, payload.Token
	} else {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		draftID = r.FormValue("draft_id")
		recipientID = r.FormValue("recipient_id")
		token = r.FormValue("token")
	}
	if !email.ValidToken(s.Cfg.Email.TrackingSecret, draftID, recipientID, token) {
		respondError(w, http.StatusForbidden, errInvalidToken)
		return
	}

	draft, err := s.DB.Drafts.Get(ctx, draftID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	recipients, err := s.DB.Email.ListRecipients(ctx, draft.UserID)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	var recipientEmail string
	for _, rec := range recipients {
		if rec.ID == recipientID {
			recipientEmail = rec.Email
			break
		}
	}
	if recipientEmail == "" {
		respondError(w, http.StatusNotFound, persistence.ErrNotFound)
		return
	}
	if err := s.DB.Email.Unsubscribe(ctx, draft.UserID, recipientEmail); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"unsubscribed": true})
}

func (s *Server) handleUnsubscribeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("user_id")
	recipientEmail := r.URL.Query().Get("email")
	unsubscribed, err := s.DB.Email.IsUnsubscribed(ctx, userID, recipientEmail)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"unsubscribed": unsubscribed})
}

// handleTrackOpen records an open event and always returns a 1x1 GIF, even
// when the write fails — a broken pixel would be visible to the recipient,
// a dropped tracking row would not.
func (s *Server) handleTrackOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.URL.Query().Get("draft_id")
	recipientID := r.URL.Query().Get("recipient_id")
	token := r.URL.Query().Get("token")
	if email.ValidToken(s.Cfg.Email.TrackingSecret, draftID, recipientID, token) {
		_ = s.DB.Tracking.Record(ctx, persistence.TrackingEvent{
			DraftID:     draftID,
			RecipientID: recipientID,
			Type:        persistence.TrackingEventOpen,
		})
	}
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(trackingPixelGIF)
}

// handleTrackClick records a click event and always redirects to the
// original URL, even when the write fails or the token is invalid — a
// broken link is worse than a missed click count.
func (s *Server) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID := r.URL.Query().Get("draft_id")
	recipientID := r.URL.Query().Get("recipient_id")
	token := r.URL.Query().Get("token")
	target := r.URL.Query().Get("url")
	if email.ValidToken(s.Cfg.Email.TrackingSecret, draftID, recipientID, token) {
		_ = s.DB.Tracking.Record(ctx, persistence.TrackingEvent{
			DraftID:     draftID,
			RecipientID: recipientID,
			Type:        persistence.TrackingEventClick,
			URL:         target,
		})
	}
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

var errInvalidToken = tokenError("httpapi: invalid or expired tracking token")

type tokenError string

func (e tokenError) Error() string { return string(e) }
