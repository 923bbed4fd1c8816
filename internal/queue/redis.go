package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	apperrors "derroche/internal/errors"
)

// RedisQueue enqueues jobs into Redis through asynq and reads its counters.
type RedisQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	policy    Policy
	queue     string
}

var (
	_ Enqueuer  = (*RedisQueue)(nil)
	_ Inspector = (*RedisQueue)(nil)
)

// NewRedisQueue connects to the Redis instance at redisURL.
func NewRedisQueue(redisURL string, policy Policy) (*RedisQueue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &RedisQueue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		policy:    policy,
		queue:     DefaultQueue,
	}, nil
}

// Enqueue stores the job with the retry budget, per-attempt timeout and
// retention of the queue policy.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) (*Handle, error) {
	payload, err := job.Encode()
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(string(job.Kind), payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.policy.MaxRetry),
		asynq.Timeout(q.policy.Timeout),
		asynq.Retention(q.policy.Retention),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueueUnavailable, err)
	}

	jobsEnqueued.WithLabelValues("redis", string(job.Kind)).Inc()
	return &Handle{ID: info.ID, Queue: info.Queue}, nil
}

// Stats reads the queue counters from Redis. A queue that has never seen a
// job reports zeros.
func (q *RedisQueue) Stats(_ context.Context) (*Stats, error) {
	stats := &Stats{Backend: "redis", Queue: q.queue}

	queues, err := q.inspector.Queues()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueueUnavailable, err)
	}
	if !slices.Contains(queues, q.queue) {
		return stats, nil
	}

	info, err := q.inspector.GetQueueInfo(q.queue)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueueUnavailable, err)
	}
	stats.Pending = int64(info.Pending + info.Scheduled)
	stats.InFlight = int64(info.Active)
	stats.Retrying = int64(info.Retry)
	stats.Succeeded = int64(info.Completed)
	stats.Failed = int64(info.Archived)
	return stats, nil
}

// Job reads the status of a task from Redis.
func (q *RedisQueue) Job(_ context.Context, id string) (*JobInfo, error) {
	info, err := q.inspector.GetTaskInfo(q.queue, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrQueueUnavailable, err)
	}

	out := &JobInfo{
		ID:        info.ID,
		Queue:     info.Queue,
		Kind:      Kind(info.Type),
		State:     taskState(info.State),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	}
	if job, err := Decode(info.Payload); err == nil {
		out.RecordID = job.RecordID
	}
	if !info.CompletedAt.IsZero() {
		completed := info.CompletedAt.UTC()
		out.CompletedAt = &completed
	}
	return out, nil
}

func taskState(s asynq.TaskState) JobState {
	switch s {
	case asynq.TaskStateActive:
		return JobStateActive
	case asynq.TaskStateRetry:
		return JobStateRetry
	case asynq.TaskStateCompleted:
		return JobStateCompleted
	case asynq.TaskStateArchived:
		return JobStateFailed
	default:
		return JobStatePending
	}
}

// Close releases the Redis connections.
func (q *RedisQueue) Close() error {
	if err := q.inspector.Close(); err != nil {
		return err
	}
	return q.client.Close()
}

// RedisServer pulls jobs from Redis and hands them to a Handler.
type RedisServer struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.SugaredLogger
}

// NewRedisServer builds a server running concurrency workers over the photo queue.
func NewRedisServer(redisURL string, policy Policy, concurrency int, handler Handler, log *zap.SugaredLogger) (*RedisServer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{DefaultQueue: 1},
		// asynq passes the number of earlier retries; Delay takes the failure number.
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return policy.Delay(n + 1)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warnw("job attempt failed", "type", task.Type(), "retried", retried, "max_retry", maxRetry, "error", err)
		}),
		Logger:          log,
		ShutdownTimeout: 30 * time.Second,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(string(KindProcessPhoto), func(ctx context.Context, task *asynq.Task) error {
		job, err := Decode(task.Payload())
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		err = handler.Handle(ctx, job, Attempt{Retry: retried, MaxRetry: maxRetry})
		if err != nil && IsPermanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	})

	return &RedisServer{srv: srv, mux: mux, log: log}, nil
}

// Run processes jobs until ctx is cancelled, then drains in-flight work.
func (s *RedisServer) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("starting queue server: %w", err)
	}
	s.log.Infow("queue server started", "queue", DefaultQueue)

	<-ctx.Done()
	s.srv.Shutdown()
	s.log.Info("queue server stopped")
	return nil
}
