package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/drivemode/internal/classifier"
	"github.com/dukerupert/drivemode/internal/config"
	"github.com/dukerupert/drivemode/internal/database"
	"github.com/dukerupert/drivemode/internal/email"
	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/notify"
	"github.com/dukerupert/drivemode/internal/outbox"
	"github.com/dukerupert/drivemode/internal/push"
	"github.com/dukerupert/drivemode/internal/server"
	"github.com/dukerupert/drivemode/internal/store"
	ws "github.com/dukerupert/drivemode/internal/websocket"
)

const outboxPurgeInterval = time.Hour

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func outboxConfig(c config.OutboxConfig) outbox.Config {
	return outbox.Config{
		Interval:    c.Interval,
		MaxAttempts: c.MaxAttempts,
		BackoffBase: c.BackoffBase,
		MaxBackoff:  c.MaxBackoff,
		BatchSize:   c.BatchSize,
	}
}

func notificationChannels(cfg *config.Config, pushSvc *push.Service, ps *store.PushStore, logger *slog.Logger) []notify.Channel {
	var channels []notify.Channel
	if pushSvc.Enabled() {
		channels = append(channels, push.NewNotifier(pushSvc, ps, logger))
	}
	mail := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, cfg.Server.BaseURL)
	if mail.Configured() && cfg.Email.To != "" {
		channels = append(channels, notify.EmailChannel{Client: mail, To: cfg.Email.To})
	}
	return channels
}

func newClassifier(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) *classifier.Classifier {
	var gen classifier.Generator
	g, err := classifier.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	switch {
	case errors.Is(err, classifier.ErrNotConfigured):
		logger.Warn("gemini api key not set, emergency checks will fail")
	case err != nil:
		logger.Error("gemini client unavailable, emergency checks will fail", "error", err)
	default:
		gen = g
	}
	return classifier.New(gen, logger)
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	hub := ws.NewHub(logger.With("component", "websocket"))
	outboxStore := store.NewOutboxStore(db)
	dispatcher := outbox.New(outboxStore, outboxConfig(cfg.Outbox), logger)

	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
	})
	channels := notificationChannels(cfg, pushSvc, store.NewPushStore(db), logger)
	if len(channels) == 0 {
		logger.Warn("no notification channel configured, missed calls are only stored")
	}
	dispatcher.Handle(model.TopicMissedCallNotify, notify.New(logger, channels...).OutboxHandler())

	backups := newBackupManager(cfg.Backup, db, logger)

	srv := server.New(server.Deps{
		DB:         db,
		Hub:        hub,
		Outbox:     dispatcher,
		Classifier: newClassifier(ctx, cfg.Gemini, logger),
		Push:       pushSvc,
		Backups:    backups,
	}, cfg.Server.CORS, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	backups.Start(ctx)
	defer backups.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("drivemode backend listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		purgeDelivered(ctx, outboxStore, cfg.Outbox.Retention, logger)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// purgeDelivered drops delivered outbox messages older than retention until
// ctx is done.
func purgeDelivered(ctx context.Context, st *store.OutboxStore, retention time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(outboxPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteDeliveredBefore(time.Now().Add(-retention))
			if err != nil {
				logger.Error("purge delivered outbox messages", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged delivered outbox messages", "count", n)
			}
		}
	}
}
