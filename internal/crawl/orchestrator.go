// Package crawl implements the batch crawl orchestrator: it iterates every
// user who owns at least one active source, fetches new content through
// the connector registry, and dedups it into persistence.ContentItemStore.
package crawl

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/creatorpulse/creatorpulse/internal/connectors"
	"github.com/creatorpulse/creatorpulse/internal/cperrors"
	"github.com/creatorpulse/creatorpulse/internal/persistence"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
)

// Orchestrator runs crawl_all_sources: one batch per invocation, serialized
// per-user by the is_crawling flag, parallel across users up to Concurrency.
type Orchestrator struct {
	Users       persistence.UserStore
	Sources     persistence.SourceStore
	Content     persistence.ContentItemStore
	Registry    *connectors.Registry
	HotRow      *databases.HotRowCache
	Concurrency int
}

// BatchResult summarizes one user's pass through the batch, whether it ran
// or was skipped because a crawl was already in progress.
type BatchResult struct {
	UserID      string
	Skipped     bool
	SourceCount int
	ItemsFetched int
	ItemsNew     int
	Duration     time.Duration
}

// CrawlAllSources is the batch entry point. Cross-user work runs in
// parallel up to Concurrency; within one user, sources are crawled in
// enumeration order and a failure in one source never aborts the batch.
func (o *Orchestrator) CrawlAllSources(ctx context.Context) ([]BatchResult, error) {
	userIDs, err := o.Sources.ListUsersWithActiveSources(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	limit := o.Concurrency
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)

	for i, userID := range userIDs {
		i, userID := i, userID
		g.Go(func() error {
			results[i] = o.crawlUser(gctx, userID)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// CrawlUser runs the same per-user reconciliation pass CrawlAllSources
// runs for every active user, against exactly one userID. It is the
// eventbus crawl-tick consumer's entry point.
func (o *Orchestrator) CrawlUser(ctx context.Context, userID string) BatchResult {
	return o.crawlUser(ctx, userID)
}

func (o *Orchestrator) crawlUser(ctx context.Context, userID string) BatchResult {
	start := time.Now()
	result := BatchResult{UserID: userID}

	if err := o.beginCrawl(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrAlreadyCrawling) {
			result.Skipped = true
			log.Info().Str("user_id", userID).Msg("crawl: skipping, batch already in progress")
			return result
		}
		log.Error().Err(err).Str("user_id", userID).Msg("crawl: failed to begin batch")
		result.Skipped = true
		return result
	}
	// Cancellation of the tick marks is_crawling=false and leaves partial
	// source updates durable — the defer runs even when ctx is canceled.
	defer func() {
		schedule, err := o.Users.GetSchedule(ctx, userID)
		freqHours := persistence.DefaultCrawlFrequencyHours
		if err == nil && schedule.CrawlFrequencyHours > 0 {
			freqHours = schedule.CrawlFrequencyHours
		}
		nextCrawl := time.Now().UTC().Add(time.Duration(freqHours) * time.Hour)
		if endErr := o.Users.EndCrawl(context.WithoutCancel(ctx), userID, result.SourceCount, result.ItemsNew, result.Duration, nextCrawl); endErr != nil {
			log.Error().Err(endErr).Str("user_id", userID).Msg("crawl: failed to end batch")
		}
		if o.HotRow != nil {
			_ = o.HotRow.ReleaseCrawlLease(context.WithoutCancel(ctx), userID)
		}
	}()

	sources, err := o.Sources.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("crawl: failed to list sources")
		result.Duration = time.Since(start)
		return result
	}

	for _, src := range sources {
		if src.Status != persistence.SourceStatusActive {
			continue
		}
		result.SourceCount++
		fetched, newItems, err := o.crawlSource(ctx, src)
		result.ItemsFetched += fetched
		result.ItemsNew += newItems
		if err != nil {
			log.Warn().Err(err).Str("source_id", src.ID).Msg("crawl: source failed")
		}
	}

	result.Duration = time.Since(start)
	return result
}

func (o *Orchestrator) beginCrawl(ctx context.Context, userID string) error {
	if o.HotRow != nil {
		acquired, err := o.HotRow.AcquireCrawlLease(ctx, userID, 5*time.Minute)
		if err == nil && !acquired {
			return persistence.ErrAlreadyCrawling
		}
		// Redis failure or disabled cache: fall through to the authoritative
		// Postgres/memory CAS, which is never skipped.
	}
	return o.Users.TryBeginCrawl(ctx, userID)
}

// crawlSource validates, fetches, and dedups one source. A connector-level
// rate-limit error is returned immediately — never retried with a sleep —
// per the event-loop discipline; it is recorded as a normal source failure.
func (o *Orchestrator) crawlSource(ctx context.Context, src persistence.Source) (fetched, newCount int, err error) {
	connector, ok := o.Registry.Build(src.Kind, src.ID, src.Config, src.Credentials)
	if !ok {
		markErr := o.Sources.SetStatus(ctx, src.ID, persistence.SourceStatusError, "unknown source kind: "+src.Kind)
		return 0, 0, errors.Join(cperrors.Validation("unknown source kind: "+src.Kind), markErr)
	}

	if err := connector.Validate(ctx); err != nil {
		o.markFailed(ctx, src.ID, err)
		return 0, 0, err
	}
	// Validate may have normalized config (e.g. resolved a handle); persist it.
	if _, uerr := o.Sources.Update(ctx, src); uerr != nil {
		log.Warn().Err(uerr).Str("source_id", src.ID).Msg("crawl: failed to persist normalized config")
	}

	items, err := connector.Fetch(ctx, src.LastCrawledAt)
	if err != nil {
		o.markFailed(ctx, src.ID, err)
		return 0, 0, err
	}

	for _, item := range items {
		if item.URL == "" {
			continue
		}
		fetched++
		item.UserID = src.UserID
		_, inserted, uerr := o.Content.Upsert(ctx, item)
		if uerr != nil {
			log.Warn().Err(uerr).Str("source_id", src.ID).Str("url", item.URL).Msg("crawl: upsert failed")
			continue
		}
		if inserted {
			newCount++
		}
	}

	now := time.Now().UTC()
	_ = o.Sources.SetLastCrawledAt(ctx, src.ID, now)
	_ = o.Sources.SetStatus(ctx, src.ID, persistence.SourceStatusActive, "")
	return fetched, newCount, nil
}

// SyncSource crawls exactly one source on demand, outside the batch
// reconciliation path — the per-source sync endpoint's entry point.
func (o *Orchestrator) SyncSource(ctx context.Context, userID, sourceID string) (fetched, newCount int, err error) {
	src, err := o.Sources.Get(ctx, userID, sourceID)
	if err != nil {
		return 0, 0, err
	}
	return o.crawlSource(ctx, src)
}

func (o *Orchestrator) markFailed(ctx context.Context, sourceID string, err error) {
	if setErr := o.Sources.SetStatus(ctx, sourceID, persistence.SourceStatusError, err.Error()); setErr != nil {
		log.Error().Err(setErr).Str("source_id", sourceID).Msg("crawl: failed to mark source error")
	}
}

// ReactivateSource flips a single errored source back to active, per spec:
// reactivation does not immediately crawl.
func ReactivateSource(ctx context.Context, sources persistence.SourceStore, userID, sourceID string) error {
	src, err := sources.Get(ctx, userID, sourceID)
	if err != nil {
		return err
	}
	if src.Status != persistence.SourceStatusError {
		return nil
	}
	return sources.SetStatus(ctx, sourceID, persistence.SourceStatusActive, "")
}

// ReactivateAllFailed reactivates every errored source owned by userID.
func ReactivateAllFailed(ctx context.Context, sources persistence.SourceStore, userID string) (int, error) {
	all, err := sources.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, src := range all {
		if src.Status != persistence.SourceStatusError {
			continue
		}
		if err := sources.SetStatus(ctx, src.ID, persistence.SourceStatusActive, ""); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
