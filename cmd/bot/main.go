// Command bot runs the conversation controller and the ops HTTP API. Photo
// jobs go to Redis for cmd/worker to process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

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
	log := logger.Named("bot")

	if cfg.QueueBackend != config.QueueRedis {
		return fmt.Errorf("the bot binary needs QUEUE_BACKEND=redis; use the root binary for the in-process queue")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	q, err := queue.NewRedisQueue(cfg.RedisURL, a.Policy())
	if err != nil {
		return fmt.Errorf("failed to create queue client: %w", err)
	}
	defer func() {
		if err := q.Close(); err != nil {
			log.Warnw("failed to close queue client", "error", err)
		}
	}()

	ctrl := a.Controller(q)
	router := a.Router(ctrl, q)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Serve(ctx, router) })
	g.Go(func() error { return a.ReceiveUpdates(ctx, ctrl) })
	return g.Wait()
}
