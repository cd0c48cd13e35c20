package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
)

// RecipientOutcome reports what happened when sending to one recipient.
type RecipientOutcome struct {
	RecipientID string
	Status      string // sent, failed, queued
	Error       string
}

// Config bundles the SMTP/tracking settings the delivery path needs from
// config.EmailConfig and config.SMTPConfig, kept narrow so this package
// doesn't import internal/config directly.
type Config struct {
	From               string
	DailyCapDefault    int
	DailyCapWorkspace  int
	TrackingBaseURL    string
	UnsubscribeBaseURL string
	TrackingSecret     string
}

// Delivery implements the newsletter-send protocol (C11).
type Delivery struct {
	Drafts persistence.DraftStore
	Emails persistence.EmailDeliveryStore
	Prefs  *preferences.Resolver
	Sender Sender
	Cfg    Config
	// sleep is overridable in tests to avoid real waits during retries.
	sleep func(time.Duration)
}

// SendNewsletter resolves preferences, filters recipients against the
// unsubscribe set, and sends the rendered draft to each surviving
// recipient in order, stopping (and queuing the remainder) once the
// user's daily cap is hit.
func (d *Delivery) SendNewsletter(ctx context.Context, userID, draftID string, recipients []persistence.Recipient, subjectOverride string) ([]RecipientOutcome, error) {
	sleep := d.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	draft, err := d.Drafts.Get(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("email: load draft: %w", err)
	}

	prefs, err := d.Prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("email: resolve preferences: %w", err)
	}
	emailPrefs, _ := prefs["email_preferences"].(map[string]any)

	subject := subjectOverride
	if subject == "" {
		subject = renderSubject(stringPref(emailPrefs, "default_subject_template", "Your newsletter draft: {title}"), draft.Title)
	}

	workspaceTier := boolPref(emailPrefs, "workspace_tier", false)
	dailyCap := d.Cfg.DailyCapDefault
	if workspaceTier {
		dailyCap = d.Cfg.DailyCapWorkspace
	}
	resetAt := nextUTCMidnight(time.Now().UTC())

	trackOpens := boolPref(emailPrefs, "track_opens", true)
	trackClicks := boolPref(emailPrefs, "track_clicks", true)

	outcomes := make([]RecipientOutcome, 0, len(recipients))
	capReached := false

	for _, recipient := range recipients {
		if recipient.Status == persistence.RecipientStatusUnsubscribed {
			continue
		}
		unsubscribed, err := d.Emails.IsUnsubscribed(ctx, userID, recipient.Email)
		if err == nil && unsubscribed {
			continue
		}

		if capReached {
			outcomes = append(outcomes, RecipientOutcome{RecipientID: recipient.ID, Status: persistence.EmailStatusQueued})
			continue
		}

		if _, ok, err := d.Emails.IncrementDaily(ctx, userID, dailyCap, resetAt); err == nil && !ok {
			capReached = true
			outcomes = append(outcomes, RecipientOutcome{RecipientID: recipient.ID, Status: persistence.EmailStatusQueued})
			continue
		}

		outcome := d.sendToRecipient(ctx, sleep, userID, draft, recipient, subject, trackOpens, trackClicks)
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (d *Delivery) sendToRecipient(ctx context.Context, sleep func(time.Duration), userID string, draft persistence.Draft, recipient persistence.Recipient, subject string, trackOpens, trackClicks bool) RecipientOutcome {
	token := RecipientToken(d.Cfg.TrackingSecret, draft.ID, recipient.ID)
	htmlBody, textBody := RenderBody(draft, RenderOptions{
		TrackOpens:      trackOpens,
		TrackClicks:     trackClicks,
		TrackingBaseURL: d.Cfg.TrackingBaseURL,
		UnsubscribeURL:  d.Cfg.UnsubscribeBaseURL,
		DraftID:         draft.ID,
		RecipientID:     recipient.ID,
		RecipientToken:  token,
	})

	log, err := d.Emails.AppendLog(ctx, persistence.EmailDeliveryLog{
		ID:          uuid.NewString(),
		UserID:      userID,
		DraftID:     draft.ID,
		RecipientID: recipient.ID,
		Status:      persistence.EmailStatusSending,
	})
	if err != nil {
		return RecipientOutcome{RecipientID: recipient.ID, Status: persistence.EmailStatusFailed, Error: err.Error()}
	}

	msg := Message{To: recipient.Email, Subject: subject, HTML: htmlBody, Text: textBody}

	var lastErr error
	for attempt := 0; attempt <= len(retryBackoffs); attempt++ {
		if attempt > 0 {
			sleep(retryBackoffs[attempt-1])
			if _, err := d.Emails.IncrementRetry(ctx, log.ID); err != nil {
				lastErr = err
				break
			}
		}
		if err := d.Sender.Send(ctx, d.Cfg.From, msg); err != nil {
			lastErr = cperrors.EmailSend("email: send failed", err)
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		_, _ = d.Emails.UpdateLogStatus(ctx, log.ID, persistence.EmailStatusFailed, lastErr.Error())
		return RecipientOutcome{RecipientID: recipient.ID, Status: persistence.EmailStatusFailed, Error: lastErr.Error()}
	}
	_, _ = d.Emails.UpdateLogStatus(ctx, log.ID, persistence.EmailStatusSent, "")
	return RecipientOutcome{RecipientID: recipient.ID, Status: persistence.EmailStatusSent}
}

func renderSubject(template, title string) string {
	return strings.ReplaceAll(template, "{title}", title)
}

func stringPref(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func boolPref(m map[string]any, key string, fallback bool) bool {
	if m == nil {
		return fallback
	}
	if b, ok := m[key].(bool); ok {
		return b
	}
	return fallback
}

func nextUTCMidnight(t time.Time) time.Time {
	y, mo, da := t.Date()
	return time.Date(y, mo, da, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
