// Command derroche runs the bot, the ops API and the photo worker in one
// process. With QUEUE_BACKEND=memory jobs never leave the process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"derroche/internal/app"
	"derroche/internal/config"
	"derroche/internal/logger"
	"derroche/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	var (
		enqueuer  queue.Enqueuer
		inspector queue.Inspector
	)
	switch cfg.QueueBackend {
	case config.QueueMemory:
		mq := queue.NewMemoryQueue(a.Processor(), log.Named("queue"),
			queue.WithWorkers(cfg.WorkerConcurrency),
			queue.WithPolicy(a.Policy()),
		)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			mq.Shutdown(shutdownCtx)
		}()
		enqueuer, inspector = mq, mq

	default:
		rq, err := queue.NewRedisQueue(cfg.RedisURL, a.Policy())
		if err != nil {
			return fmt.Errorf("failed to create queue client: %w", err)
		}
		defer func() { _ = rq.Close() }()

		srv, err := queue.NewRedisServer(cfg.RedisURL, a.Policy(), cfg.WorkerConcurrency, a.Processor(), log.Named("asynq"))
		if err != nil {
			return fmt.Errorf("failed to create queue server: %w", err)
		}
		g.Go(func() error { return srv.Run(ctx) })
		enqueuer, inspector = rq, rq
	}

	ctrl := a.Controller(enqueuer)
	g.Go(func() error { return a.Serve(ctx, a.Router(ctrl, inspector)) })
	g.Go(func() error { return a.ReceiveUpdates(ctx, ctrl) })

	log.Infow("derroche started", "queue_backend", cfg.QueueBackend, "webhook", cfg.TelegramWebhook)
	return g.Wait()
}
