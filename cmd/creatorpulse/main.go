package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/connectors"
	"github.com/creatorpulse/creatorpulse/internal/crawl"
	"github.com/creatorpulse/creatorpulse/internal/draft"
	"github.com/creatorpulse/creatorpulse/internal/email"
	"github.com/creatorpulse/creatorpulse/internal/eventbus"
	"github.com/creatorpulse/creatorpulse/internal/feedback"
	"github.com/creatorpulse/creatorpulse/internal/httpapi"
	"github.com/creatorpulse/creatorpulse/internal/llmgateway"
	"github.com/creatorpulse/creatorpulse/internal/observability"
	"github.com/creatorpulse/creatorpulse/internal/persistence/databases"
	"github.com/creatorpulse/creatorpulse/internal/preferences"
	"github.com/creatorpulse/creatorpulse/internal/scheduler"
	"github.com/creatorpulse/creatorpulse/internal/summarizer"
	"github.com/creatorpulse/creatorpulse/internal/trends"
	"github.com/creatorpulse/creatorpulse/internal/voice"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("creatorpulse")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := databases.NewManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init databases: %w", err)
	}
	defer db.Close()

	provider, err := llmgateway.Build(ctx, cfg, os.Getenv("LLM_PROVIDER"))
	if err != nil {
		return fmt.Errorf("init llm provider: %w", err)
	}
	gateway := llmgateway.New(provider, db.LLMUsage, db.HotRow, db.Analytics, cfg.RateLimitDefaults)

	registry := connectors.NewRegistry(nil)
	bus := eventbus.New(cfg.Kafka)
	defer func() {
		if err := bus.Close(); err != nil {
			log.Error().Err(err).Msg("creatorpulse: error closing event bus")
		}
	}()

	prefs := preferences.NewResolver(db.Preferences)

	detector := &trends.Detector{
		Content:   db.Content,
		Summaries: db.Summaries,
		Trends:    db.Trends,
		Vectors:   db.Vectors,
		Gateway:   gateway,
	}
	summarizerSvc := &summarizer.Summarizer{
		Content:   db.Content,
		Summaries: db.Summaries,
		Gateway:   gateway,
	}
	feedbackSvc := &feedback.Analyzer{
		Feedback: db.Feedback,
		Gateway:  gateway,
	}
	voiceSvc := &voice.Analyzer{
		Blobs:    db.Blobs,
		Profiles: db.Voice,
		Gateway:  gateway,
	}
	generator := &draft.Generator{
		Drafts:    db.Drafts,
		Voices:    db.Voice,
		Prefs:     prefs,
		Trends:    detector,
		Summaries: summarizerSvc,
		Feedback:  feedbackSvc,
		Gateway:   gateway,
		Bus:       bus,
	}

	sender := &email.SMTPSender{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}
	delivery := &email.Delivery{
		Drafts: db.Drafts,
		Emails: db.Email,
		Prefs:  prefs,
		Sender: sender,
		Cfg: email.Config{
			From:               cfg.SMTP.From,
			DailyCapDefault:    cfg.Email.DailyCapDefault,
			DailyCapWorkspace:  cfg.Email.DailyCapWorkspace,
			TrackingBaseURL:    cfg.Email.TrackingBaseURL,
			UnsubscribeBaseURL: cfg.Email.UnsubscribeBaseURL,
			TrackingSecret:     cfg.Email.TrackingSecret,
		},
	}
	reviewBaseURL := os.Getenv("DRAFT_REVIEW_BASE_URL")
	notifier := &email.Notifier{
		Users:  db.Users,
		Prefs:  prefs,
		Sender: sender,
		From:   cfg.SMTP.From,
		ReviewURL: func(draftID string) string {
			return reviewBaseURL + "/drafts/" + draftID
		},
	}

	orchestrator := &crawl.Orchestrator{
		Users:       db.Users,
		Sources:     db.Sources,
		Content:     db.Content,
		Registry:    registry,
		HotRow:      db.HotRow,
		Concurrency: cfg.Crawl.MaxConcurrentUsers,
	}

	sched := scheduler.New(bus, db.Users, db.Sources, prefs, cfg.Scheduler.ReconcileInterval)
	go func() {
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("creatorpulse: scheduler stopped")
		}
	}()

	runConsumers(ctx, bus, orchestrator, generator, delivery, notifier)

	server := httpapi.NewServer(httpapi.Server{
		DB:         db,
		Connectors: registry,
		Crawler:    orchestrator,
		Drafts:     generator,
		Voice:      voiceSvc,
		Feedback:   feedbackSvc,
		Delivery:   delivery,
		Gateway:    gateway,
		Prefs:      prefs,
		Bus:        bus,
		Cfg:        cfg,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpSrv := &http.Server{Addr: addr, Handler: server}

	go func() {
		log.Info().Str("addr", addr).Msg("creatorpulse: listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("creatorpulse: listen failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("creatorpulse: shutdown error")
	}
	log.Info().Msg("creatorpulse: stopped")
	return nil
}

// runConsumers starts one goroutine per eventbus topic the scheduler and
// the publish handler feed. Bus.Subscribe blocks until ctx is canceled, so
// each runs on its own goroutine rather than serializing behind the others.
func runConsumers(ctx context.Context, bus eventbus.Bus, orchestrator *crawl.Orchestrator, generator *draft.Generator, delivery *email.Delivery, notifier *email.Notifier) {
	go subscribe(ctx, bus, eventbus.TopicCrawlTick, 4, func(ctx context.Context, evt eventbus.Event) error {
		userID := string(evt.Payload)
		result := orchestrator.CrawlUser(ctx, userID)
		if result.Skipped {
			return nil
		}
		log.Info().Str("user_id", userID).Int("sources", result.SourceCount).Int("items_new", result.ItemsNew).Msg("crawl tick done")
		return nil
	})

	go subscribe(ctx, bus, eventbus.TopicDraftTick, 2, func(ctx context.Context, evt eventbus.Event) error {
		userID := string(evt.Payload)
		d, err := generator.Generate(ctx, userID, 0, 0)
		if err != nil {
			return err
		}
		log.Info().Str("user_id", userID).Str("draft_id", d.ID).Msg("draft tick done")
		return nil
	})

	go subscribe(ctx, bus, eventbus.TopicDraftReady, 4, func(ctx context.Context, evt eventbus.Event) error {
		userID := string(evt.Key)
		draftID := string(evt.Payload)
		return notifier.NotifyDraftReady(ctx, userID, draftID)
	})

	go subscribe(ctx, bus, eventbus.TopicEmailSend, 4, func(ctx context.Context, evt eventbus.Event) error {
		var job struct {
			UserID          string `json:"user_id"`
			DraftID         string `json:"draft_id"`
			SubjectOverride string `json:"subject_override"`
		}
		if err := json.Unmarshal(evt.Payload, &job); err != nil {
			return err
		}
		recipients, err := delivery.Emails.ListRecipients(ctx, job.UserID)
		if err != nil {
			return err
		}
		outcomes, err := delivery.SendNewsletter(ctx, job.UserID, job.DraftID, recipients, job.SubjectOverride)
		if err != nil {
			return err
		}
		if anySent(outcomes) {
			_ = delivery.Drafts.MarkEmailSent(ctx, job.DraftID, time.Now().UTC())
		}
		return nil
	})
}

func anySent(outcomes []email.RecipientOutcome) bool {
	for _, o := range outcomes {
		if o.Status == "sent" {
			return true
		}
	}
	return false
}

func subscribe(ctx context.Context, bus eventbus.Bus, topic string, workers int, handler eventbus.Handler) {
	if err := bus.Subscribe(ctx, topic, workers, handler); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("topic", topic).Msg("creatorpulse: consumer stopped")
	}
}
