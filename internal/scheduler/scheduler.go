// Package scheduler runs the reconciliation loop: on a fixed period it
// decides, per user, whether a crawl tick or a draft tick is due and
// publishes it to the event bus. The bus's own worker pools (C2, C9) are
// the actual job runners — this package only ever decides "is it time".
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/creatorpulse/creatorpulse/internal/eventbus"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
)

const defaultInterval = 30 * time.Minute

// Scheduler owns no job state beyond the in-memory "last fired period" map
// for draft jobs — crawl due-ness is read straight from
// CrawlSchedule.NextScheduledCrawlAt, which C2 itself advances on
// completion, so a restart never double-schedules a crawl. The draft map
// starts empty, so after a restart the first reconcile past
// draft_schedule_time re-fires a draft tick already fired this period;
// Draft's single-row overwrite semantics make that harmless.
type Scheduler struct {
	Bus     eventbus.Bus
	Users   persistence.UserStore
	Sources persistence.SourceStore
	Prefs   *preferences.Resolver

	Interval time.Duration

	mu    sync.Mutex
	draft map[string]string // userID -> last-fired period key
}

func New(bus eventbus.Bus, users persistence.UserStore, sources persistence.SourceStore, prefs *preferences.Resolver, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		Bus:      bus,
		Users:    users,
		Sources:  sources,
		Prefs:    prefs,
		Interval: interval,
		draft:    make(map[string]string),
	}
}

// Run reconciles immediately, then every Interval, until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.reconcile(ctx)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

func (s *Scheduler) reconcile(ctx context.Context) {
	now := time.Now().UTC()

	activeUserIDs, err := s.Sources.ListUsersWithActiveSources(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: failed to list users with active sources")
	} else {
		for _, userID := range activeUserIDs {
			s.reconcileCrawl(ctx, userID, now)
		}
	}

	users, err := s.Users.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: failed to list users")
		return
	}
	for _, u := range users {
		s.reconcileDraft(ctx, u.ID, now)
	}
}

// reconcileCrawl fires the crawl tick once NextScheduledCrawlAt has passed.
// A user currently mid-batch is skipped — the next reconcile after EndCrawl
// sees the freshly advanced NextScheduledCrawlAt and stays quiet until then.
func (s *Scheduler) reconcileCrawl(ctx context.Context, userID string, now time.Time) {
	schedule, err := s.Users.GetSchedule(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("scheduler: failed to load crawl schedule")
		return
	}
	if schedule.IsCrawling {
		return
	}
	due := schedule.NextScheduledCrawlAt == nil || !schedule.NextScheduledCrawlAt.After(now)
	if !due {
		return
	}
	s.publish(ctx, eventbus.TopicCrawlTick, userID)
}

// reconcileDraft fires the draft tick at most once per period (a UTC day
// for "daily", the UTC Monday for "weekly"), the moment the configured
// draft_schedule_time has passed for that period. "custom" has no defined
// cadence in the preferences document and never fires automatically — the
// draft must be triggered through the API instead.
func (s *Scheduler) reconcileDraft(ctx context.Context, userID string, now time.Time) {
	prefs, err := s.Prefs.Get(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("scheduler: failed to resolve preferences")
		return
	}
	frequency, _ := prefs["newsletter_frequency"].(string)
	scheduleTime, _ := prefs["draft_schedule_time"].(string)

	hour, minute, ok := parseHHMM(scheduleTime)
	if !ok {
		return
	}

	periodKey, due := draftPeriod(frequency, now)
	if !due {
		return
	}
	scheduledAt := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if now.Before(scheduledAt) {
		return
	}

	s.mu.Lock()
	alreadyFired := s.draft[userID] == periodKey
	s.mu.Unlock()
	if alreadyFired {
		return
	}

	s.publish(ctx, eventbus.TopicDraftTick, userID)

	s.mu.Lock()
	s.draft[userID] = periodKey
	s.mu.Unlock()
}

// draftPeriod returns the period key frequency would be due for at now,
// and whether that frequency fires at all on this day.
func draftPeriod(frequency string, now time.Time) (key string, due bool) {
	switch frequency {
	case "weekly":
		if now.Weekday() != time.Monday {
			return "", false
		}
		year, week := now.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week), true
	case "daily", "":
		return now.Format("2006-01-02"), true
	default:
		return "", false
	}
}

func (s *Scheduler) publish(ctx context.Context, topic, userID string) {
	if err := s.Bus.Publish(ctx, topic, userID, []byte(userID)); err != nil {
		log.Error().Err(err).Str("topic", topic).Str("user_id", userID).Msg("scheduler: publish failed")
		return
	}
	log.Info().Str("topic", topic).Str("user_id", userID).Msg("scheduler: tick published")
}

func parseHHMM(v string) (hour, minute int, ok bool) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
