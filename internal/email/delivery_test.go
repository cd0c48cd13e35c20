package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
)

type fakeSender struct {
	failUntilAttempt int
	attempts         int
	sent             []Message
}

func (f *fakeSender) Send(ctx context.Context, from string, msg Message) error {
	f.attempts++
	if f.attempts <= f.failUntilAttempt {
		return errors.New("simulated smtp failure")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestDelivery(t *testing.T, sender Sender) (*Delivery, persistence.DraftStore) {
	t.Helper()
	drafts := databases.NewDraftStore(nil)
	emails := databases.NewEmailDeliveryStore(nil)
	prefsStore := databases.NewPreferencesStore(nil)
	d := &Delivery{
		Drafts: drafts,
		Emails: emails,
		Prefs:  preferences.NewResolver(prefsStore),
		Sender: sender,
		Cfg: Config{
			From:               "news@creatorpulse.test",
			DailyCapDefault:    3,
			DailyCapWorkspace:  10,
			TrackingBaseURL:    "https://track.creatorpulse.test",
			UnsubscribeBaseURL: "https://creatorpulse.test/unsubscribe",
			TrackingSecret:     "test-secret",
		},
		sleep: func(time.Duration) {},
	}
	return d, drafts
}

func seedDraft(t *testing.T, drafts persistence.DraftStore, userID string) persistence.Draft {
	t.Helper()
	d, err := drafts.Create(context.Background(), persistence.Draft{
		UserID: userID,
		Title:  "This Week",
		Sections: []persistence.DraftSection{
			{ID: "s1", Type: persistence.DraftSectionIntro, Content: "Hello! Check out https://example.com/a for more."},
			{ID: "s2", Type: persistence.DraftSectionConclusion, Content: "See you next week."},
		},
		Status:      persistence.DraftStatusReady,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return d
}

func recipients(n int) []persistence.Recipient {
	out := make([]persistence.Recipient, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, persistence.Recipient{
			ID:     string(rune('a' + i)),
			Email:  string(rune('a'+i)) + "@example.com",
			Status: persistence.RecipientStatusActive,
		})
	}
	return out
}

func TestSendNewsletter_SendsToAllRecipientsUnderCap(t *testing.T) {
	sender := &fakeSender{}
	d, drafts := newTestDelivery(t, sender)
	draft := seedDraft(t, drafts, "u1")

	outcomes, err := d.SendNewsletter(context.Background(), "u1", draft.ID, recipients(2), "")
	if err != nil {
		t.Fatalf("SendNewsletter: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != persistence.EmailStatusSent {
			t.Errorf("expected sent, got %+v", o)
		}
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.sent))
	}
}

func TestSendNewsletter_StopsAtDailyCapAndQueuesRemainder(t *testing.T) {
	sender := &fakeSender{}
	d, drafts := newTestDelivery(t, sender)
	draft := seedDraft(t, drafts, "u1")

	outcomes, err := d.SendNewsletter(context.Background(), "u1", draft.ID, recipients(5), "")
	if err != nil {
		t.Fatalf("SendNewsletter: %v", err)
	}
	sentCount, queuedCount := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case persistence.EmailStatusSent:
			sentCount++
		case persistence.EmailStatusQueued:
			queuedCount++
		}
	}
	if sentCount != 3 {
		t.Fatalf("expected 3 sent (daily cap), got %d", sentCount)
	}
	if queuedCount != 2 {
		t.Fatalf("expected 2 queued past the cap, got %d", queuedCount)
	}
}

func TestSendNewsletter_SkipsUnsubscribedRecipients(t *testing.T) {
	sender := &fakeSender{}
	d, drafts := newTestDelivery(t, sender)
	draft := seedDraft(t, drafts, "u1")

	recips := recipients(2)
	if err := d.Emails.Unsubscribe(context.Background(), "u1", recips[0].Email); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	outcomes, err := d.SendNewsletter(context.Background(), "u1", draft.ID, recips, "")
	if err != nil {
		t.Fatalf("SendNewsletter: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome (one recipient unsubscribed), got %d: %+v", len(outcomes), outcomes)
	}
}

func TestSendNewsletter_RetriesOnFailureThenSucceeds(t *testing.T) {
	sender := &fakeSender{failUntilAttempt: 2}
	d, drafts := newTestDelivery(t, sender)
	draft := seedDraft(t, drafts, "u1")

	outcomes, err := d.SendNewsletter(context.Background(), "u1", draft.ID, recipients(1), "")
	if err != nil {
		t.Fatalf("SendNewsletter: %v", err)
	}
	if outcomes[0].Status != persistence.EmailStatusSent {
		t.Fatalf("expected eventual success, got %+v", outcomes[0])
	}
	if sender.attempts != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", sender.attempts)
	}
}

func TestSendNewsletter_PermanentFailureMarksFailed(t *testing.T) {
	sender := &fakeSender{failUntilAttempt: 100}
	d, drafts := newTestDelivery(t, sender)
	draft := seedDraft(t, drafts, "u1")

	outcomes, err := d.SendNewsletter(context.Background(), "u1", draft.ID, recipients(1), "")
	if err != nil {
		t.Fatalf("SendNewsletter: %v", err)
	}
	if outcomes[0].Status != persistence.EmailStatusFailed {
		t.Fatalf("expected failed after exhausting retries, got %+v", outcomes[0])
	}
	if sender.attempts != 4 {
		t.Fatalf("expected 4 attempts (1 + 3 retries), got %d", sender.attempts)
	}
}

func TestRenderBody_InjectsTrackingPixelAndRewritesLinks(t *testing.T) {
	draft := persistence.Draft{
		ID:    "d1",
		Title: "Weekly",
		Sections: []persistence.DraftSection{
			{ID: "s1", Type: persistence.DraftSectionIntro, Content: "Visit https://example.com/x for details."},
		},
	}
	htmlBody, _ := RenderBody(draft, RenderOptions{
		TrackOpens:      true,
		TrackClicks:     true,
		TrackingBaseURL: "https://track.test",
		UnsubscribeURL:  "https://creatorpulse.test/unsubscribe",
		DraftID:         "d1",
		RecipientID:     "r1",
		RecipientToken:  "tok",
	})
	if !strings.Contains(htmlBody, "track.test/track/open") {
		t.Fatalf("expected tracking pixel in body: %s", htmlBody)
	}
	if !strings.Contains(htmlBody, "track.test/track/click") {
		t.Fatalf("expected click-tracking redirect in body: %s", htmlBody)
	}
	if !strings.Contains(htmlBody, "unsubscribe") {
		t.Fatalf("expected unsubscribe link in body: %s", htmlBody)
	}
}
