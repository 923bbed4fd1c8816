// Package app wires the stores, chat client, queue and HTTP server shared by
// the bot, worker and all-in-one binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"derroche/internal/bot"
	"derroche/internal/config"
	"derroche/internal/database"
	"derroche/internal/extraction"
	"derroche/internal/handlers"
	"derroche/internal/imagestore"
	"derroche/internal/notifier"
	"derroche/internal/queue"
	"derroche/internal/services"
	"derroche/internal/telegram"
	"derroche/internal/validator"
	"derroche/internal/worker"
)

// shutdownTimeout bounds the graceful stop of the HTTP server.
const shutdownTimeout = 10 * time.Second

// App holds the dependencies every binary needs.
type App struct {
	Config   *config.Config
	DB       *database.Manager
	Records  services.RecordServicer
	Audit    services.AuditServicer
	Images   *imagestore.FileStore
	Telegram *telegram.Client
	log      *zap.SugaredLogger
}

// New connects to the database and the chat platform.
func New(cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	images, err := imagestore.NewFileStore(cfg.ImageDir)
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to open image store: %w", err)
	}

	tg, err := telegram.New(cfg.TelegramToken, cfg.TelegramRate, cfg.TelegramBurst, log.Named("telegram"))
	if err != nil {
		_ = dbManager.Close()
		return nil, err
	}

	db := dbManager.DB()
	audit := services.NewAuditService(db)

	return &App{
		Config:   cfg,
		DB:       dbManager,
		Records:  services.NewRecordService(db, audit),
		Audit:    audit,
		Images:   images,
		Telegram: tg,
		log:      log,
	}, nil
}

// Policy is the retry policy from configuration.
func (a *App) Policy() queue.Policy {
	p := queue.DefaultPolicy()
	p.MaxRetry = a.Config.JobMaxRetry
	p.Timeout = a.Config.JobTimeout
	return p
}

// Processor builds the instrumented photo job handler.
func (a *App) Processor() queue.Handler {
	client := extraction.NewClient(a.Config.ExtractionURL, &http.Client{Timeout: a.Config.ExtractionTimeout})
	processor := worker.NewPhotoProcessor(a.Records, a.Images, client, notifier.New(a.Telegram), a.log.Named("worker"))
	return queue.Instrument(processor)
}

// Controller builds the conversation controller on top of q.
func (a *App) Controller(q queue.Enqueuer) *bot.Controller {
	return bot.NewController(a.Records, q, a.Images, a.Telegram, a.Telegram, a.log.Named("bot"))
}

// Router builds the ops HTTP API. A webhook route is added when the bot
// receives updates by webhook.
func (a *App) Router(ctrl *bot.Controller, inspector queue.Inspector) *gin.Engine {
	validator.Register()

	cfg := handlers.RouterConfig{
		DB:            a.DB,
		RecordService: a.Records,
		AuditService:  a.Audit,
		Queue:         inspector,
		OpsAPIKey:     a.Config.OpsAPIKey,
	}
	if ctrl != nil && a.Config.TelegramWebhook {
		cfg.Webhook = handlers.NewWebhookHandler(a.Telegram, ctrl, a.Config.TelegramWebhookSecret)
	}
	return handlers.NewRouter(cfg)
}

// ReceiveUpdates feeds chat updates to ctrl until ctx is done, by long
// polling or by registering the webhook served on the ops router.
func (a *App) ReceiveUpdates(ctx context.Context, ctrl *bot.Controller) error {
	if a.Config.TelegramWebhook {
		if err := a.Telegram.RegisterWebhook(a.Config.TelegramWebhookURL, a.Config.TelegramWebhookSecret); err != nil {
			return err
		}
		a.log.Infow("receiving updates by webhook", "url", a.Config.TelegramWebhookURL)
		<-ctx.Done()
		return nil
	}

	if err := a.Telegram.DeleteWebhook(); err != nil {
		return err
	}
	a.log.Infow("receiving updates by long polling")
	a.Telegram.Poll(ctx, ctrl.HandleUpdate)
	return nil
}

// Serve runs handler on the configured port until ctx is done.
func (a *App) Serve(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + a.Config.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases the database pool.
func (a *App) Close() {
	if err := a.DB.Close(); err != nil {
		a.log.Warnw("failed to close database", "error", err)
	}
}
