// Command worker consumes photo jobs from Redis, calls the extraction
// service and notifies users of the outcome.
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
	log := logger.Named("worker")

	if cfg.QueueBackend != config.QueueRedis {
		return fmt.Errorf("the worker binary needs QUEUE_BACKEND=redis")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := queue.NewRedisServer(cfg.RedisURL, a.Policy(), cfg.WorkerConcurrency, a.Processor(), log.Named("asynq"))
	if err != nil {
		return fmt.Errorf("failed to create queue server: %w", err)
	}
	inspector, err := queue.NewRedisQueue(cfg.RedisURL, a.Policy())
	if err != nil {
		return fmt.Errorf("failed to create queue inspector: %w", err)
	}
	defer func() {
		if err := inspector.Close(); err != nil {
			log.Warnw("failed to close queue inspector", "error", err)
		}
	}()

	log.Infow("starting worker", "concurrency", cfg.WorkerConcurrency, "max_retry", cfg.JobMaxRetry)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return a.Serve(ctx, a.Router(nil, inspector)) })
	return g.Wait()
}
