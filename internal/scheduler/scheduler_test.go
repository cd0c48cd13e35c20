package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/eventbus"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
)

func newTestScheduler(t *testing.T) (*Scheduler, *eventbus.MemoryBus, persistence.UserStore, persistence.SourceStore) {
	t.Helper()
	bus := eventbus.NewMemoryBus()
	users := databases.NewUserStore(nil)
	sources := databases.NewSourceStore(nil)
	prefs := preferences.NewResolver(databases.NewPreferencesStore(nil))
	s := New(bus, users, sources, prefs, time.Hour)
	return s, bus, users, sources
}

func TestDraftPeriod_DailyAlwaysDue(t *testing.T) {
	key, due := draftPeriod("daily", time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	if !due {
		t.Fatalf("expected daily to be due every day")
	}
	if key != "2026-07-31" {
		t.Errorf("unexpected period key: %s", key)
	}
}

func TestDraftPeriod_WeeklyOnlyOnMonday(t *testing.T) {
	monday := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC) // a Monday
	tuesday := monday.AddDate(0, 0, 1)

	if _, due := draftPeriod("weekly", tuesday); due {
		t.Errorf("expected weekly to be skipped on a non-Monday")
	}
	key, due := draftPeriod("weekly", monday)
	if !due {
		t.Fatalf("expected weekly to be due on Monday")
	}
	if key == "" {
		t.Errorf("expected non-empty ISO-week period key")
	}
}

func TestDraftPeriod_CustomNeverAutoFires(t *testing.T) {
	if _, due := draftPeriod("custom", time.Now()); due {
		t.Errorf("expected custom frequency to never fire automatically")
	}
}

func TestParseHHMM(t *testing.T) {
	if h, m, ok := parseHHMM("08:30"); !ok || h != 8 || m != 30 {
		t.Errorf("parseHHMM(08:30) = %d,%d,%v", h, m, ok)
	}
	if _, _, ok := parseHHMM("not-a-time"); ok {
		t.Errorf("expected parseHHMM to reject malformed input")
	}
	if _, _, ok := parseHHMM("25:00"); ok {
		t.Errorf("expected parseHHMM to reject out-of-range hour")
	}
}

func TestReconcileCrawl_FiresOnlyWhenDueAndNotAlreadyCrawling(t *testing.T) {
	ctx := context.Background()
	s, bus, users, _ := newTestScheduler(t)

	u, err := users.Create(ctx, persistence.User{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	received := make(chan eventbus.Event, 1)
	go func() {
		_ = bus.Subscribe(ctx, eventbus.TopicCrawlTick, 1, func(_ context.Context, evt eventbus.Event) error {
			received <- evt
			return nil
		})
	}()

	s.reconcileCrawl(ctx, u.ID, time.Now().UTC())

	select {
	case evt := <-received:
		if evt.Key != u.ID {
			t.Errorf("expected tick keyed by user id, got %s", evt.Key)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a crawl tick to be published for a never-crawled user")
	}
}

func TestReconcileDraft_FiresAtMostOncePerPeriod(t *testing.T) {
	ctx := context.Background()
	s, bus, _, _ := newTestScheduler(t)

	received := make(chan eventbus.Event, 2)
	go func() {
		_ = bus.Subscribe(ctx, eventbus.TopicDraftTick, 1, func(_ context.Context, evt eventbus.Event) error {
			received <- evt
			return nil
		})
	}()

	if _, err := s.Prefs.Patch(ctx, "user-1", map[string]any{"draft_schedule_time": "00:00"}); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	now := time.Now().UTC()
	s.reconcileDraft(ctx, "user-1", now)
	s.reconcileDraft(ctx, "user-1", now.Add(time.Minute))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatalf("expected exactly one draft tick to be published")
	}
	select {
	case evt := <-received:
		t.Fatalf("expected no second draft tick within the same period, got one for %s", evt.Key)
	case <-time.After(100 * time.Millisecond):
	}
}
