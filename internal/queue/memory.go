package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "derroche/internal/errors"
)

// requeueWait is how long a due retry waits before trying a full buffer again.
const requeueWait = 50 * time.Millisecond

type memoryEntry struct {
	job    Job
	handle Handle
	retry  int
}

// MemoryQueue runs jobs on a pool of goroutines inside the current process.
// Retries wait out the policy backoff before they are re-queued; retries
// still waiting when the queue shuts down are dropped.
type MemoryQueue struct {
	handler Handler
	log     *zap.SugaredLogger
	policy  Policy
	workers int

	ch   chan memoryEntry
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}

	mu     sync.Mutex
	closed bool

	jobsMu sync.Mutex
	jobs   map[string]*JobInfo

	pending   atomic.Int64
	inFlight  atomic.Int64
	retrying  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

var (
	_ Enqueuer  = (*MemoryQueue)(nil)
	_ Inspector = (*MemoryQueue)(nil)
)

// Option configures a MemoryQueue.
type Option func(*MemoryQueue)

// WithWorkers sets how many jobs run concurrently.
func WithWorkers(n int) Option {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets how many jobs may wait for a worker before Enqueue
// reports the queue as full.
func WithQueueSize(n int) Option {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.ch = make(chan memoryEntry, n)
		}
	}
}

// WithPolicy replaces the default retry policy.
func WithPolicy(p Policy) Option {
	return func(q *MemoryQueue) {
		q.policy = p
	}
}

// NewMemoryQueue starts the worker pool that feeds jobs to handler.
func NewMemoryQueue(handler Handler, log *zap.SugaredLogger, opts ...Option) *MemoryQueue {
	q := &MemoryQueue{
		handler: handler,
		log:     log,
		policy:  DefaultPolicy(),
		workers: 4,
		ch:      make(chan memoryEntry, 256),
		done:    make(chan struct{}),
		jobs:    make(map[string]*JobInfo),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *MemoryQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				for e := range q.ch {
					q.pending.Add(-1)
					q.run(workerID, e)
				}
			}(i + 1)
		}
	})
}

func (q *MemoryQueue) run(workerID int, e memoryEntry) {
	attempt := Attempt{Retry: e.retry, MaxRetry: q.policy.MaxRetry}

	ctx := context.Background()
	var cancel context.CancelFunc = func() {}
	if q.policy.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.policy.Timeout)
	}

	q.track(e, JobStateActive, nil)
	q.inFlight.Add(1)
	err := q.attempt(ctx, e.job, attempt)
	q.inFlight.Add(-1)
	cancel()

	switch {
	case err == nil:
		q.succeeded.Add(1)
		q.track(e, JobStateCompleted, nil)
	case attempt.Final() || IsPermanent(err):
		q.failed.Add(1)
		q.track(e, JobStateFailed, err)
		q.log.Errorw("job failed permanently",
			"worker_id", workerID, "job_id", e.handle.ID, "record_id", e.job.RecordID,
			"attempt", attempt.Number(), "error", err)
	default:
		q.track(e, JobStateRetry, err)
		q.log.Warnw("job attempt failed, retrying",
			"worker_id", workerID, "job_id", e.handle.ID, "record_id", e.job.RecordID,
			"attempt", attempt.Number(), "error", err)
		q.scheduleRetry(e)
	}
}

// attempt runs the handler until it returns or ctx expires. An expired
// attempt counts as failed and frees the worker even if the handler ignores
// ctx and keeps running.
func (q *MemoryQueue) attempt(ctx context.Context, job Job, attempt Attempt) error {
	result := make(chan error, 1)
	go func() { result <- q.safeHandle(ctx, job, attempt) }()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("attempt %d exceeded timeout %s: %w", attempt.Number(), q.policy.Timeout, ctx.Err())
	}
}

func (q *MemoryQueue) safeHandle(ctx context.Context, job Job, attempt Attempt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return q.handler.Handle(ctx, job, attempt)
}

func (q *MemoryQueue) scheduleRetry(e memoryEntry) {
	e.retry++
	delay := q.policy.Delay(e.retry)
	q.retrying.Add(1)

	go func() {
		defer q.retrying.Add(-1)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		wait := timer.C
		for {
			select {
			case <-wait:
			case <-q.done:
				q.dropRetry(e)
				return
			}
			switch q.requeue(e) {
			case requeued:
				return
			case requeueClosed:
				q.dropRetry(e)
				return
			}
			wait = time.After(requeueWait)
		}
	}()
}

type requeueResult int

const (
	requeued requeueResult = iota
	requeueFull
	requeueClosed
)

// requeue puts a due retry back on the buffer without blocking.
func (q *MemoryQueue) requeue(e memoryEntry) requeueResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return requeueClosed
	}

	q.pending.Add(1)
	q.track(e, JobStatePending, nil)
	select {
	case q.ch <- e:
		return requeued
	default:
		q.pending.Add(-1)
		q.track(e, JobStateRetry, nil)
		return requeueFull
	}
}

func (q *MemoryQueue) dropRetry(e memoryEntry) {
	q.track(e, JobStateFailed, errors.New("retry dropped on shutdown"))
	q.log.Warnw("dropping scheduled retry on shutdown", "job_id", e.handle.ID, "record_id", e.job.RecordID)
}

// Enqueue accepts a job without waiting for buffer space. A full buffer or
// a queue that is shutting down fails with ErrQueueUnavailable.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) (*Handle, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueueUnavailable, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, apperrors.WithMessage(apperrors.ErrQueueUnavailable, "queue is shutting down")
	}

	e := memoryEntry{
		job:    job,
		handle: Handle{ID: uuid.NewString(), Queue: DefaultQueue},
	}

	q.pending.Add(1)
	q.track(e, JobStatePending, nil)
	select {
	case q.ch <- e:
	default:
		q.pending.Add(-1)
		q.untrack(e.handle.ID)
		q.log.Warnw("queue full, rejecting job", "record_id", job.RecordID, "capacity", cap(q.ch))
		return nil, apperrors.WithMessage(apperrors.ErrQueueUnavailable, "queue is full")
	}

	jobsEnqueued.WithLabelValues("memory", string(job.Kind)).Inc()
	q.log.Infow("queued job", "job_id", e.handle.ID, "record_id", job.RecordID)
	return &e.handle, nil
}

// Stats reports the in-process counters.
func (q *MemoryQueue) Stats(_ context.Context) (*Stats, error) {
	return &Stats{
		Backend:   "memory",
		Queue:     DefaultQueue,
		Pending:   q.pending.Load(),
		InFlight:  q.inFlight.Load(),
		Retrying:  q.retrying.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
	}, nil
}

// Job returns the status of a job accepted by this process. Finished jobs
// are kept for the policy retention.
func (q *MemoryQueue) Job(_ context.Context, id string) (*JobInfo, error) {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()

	info, ok := q.jobs[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	out := *info
	return &out, nil
}

func (q *MemoryQueue) track(e memoryEntry, state JobState, err error) {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()

	info, ok := q.jobs[e.handle.ID]
	if !ok {
		info = &JobInfo{
			ID:       e.handle.ID,
			Queue:    e.handle.Queue,
			Kind:     e.job.Kind,
			RecordID: e.job.RecordID,
			MaxRetry: q.policy.MaxRetry,
		}
		q.jobs[e.handle.ID] = info
	}
	info.State = state
	info.Retried = e.retry
	if err != nil {
		info.LastError = err.Error()
	}

	if state != JobStateCompleted && state != JobStateFailed {
		return
	}
	now := time.Now().UTC()
	info.CompletedAt = &now
	q.pruneLocked(now)
}

func (q *MemoryQueue) untrack(id string) {
	q.jobsMu.Lock()
	defer q.jobsMu.Unlock()
	delete(q.jobs, id)
}

// pruneLocked forgets finished jobs older than the retention. Without a
// retention finished jobs are forgotten at once.
func (q *MemoryQueue) pruneLocked(now time.Time) {
	for id, info := range q.jobs {
		if info.CompletedAt == nil {
			continue
		}
		if q.policy.Retention <= 0 || now.Sub(*info.CompletedAt) > q.policy.Retention {
			delete(q.jobs, id)
		}
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (q *MemoryQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	close(q.done)
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() { defer close(drained); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.log.Warn("queue shutdown interrupted by context")
	case <-drained:
		q.log.Info("queue drained, shutdown complete")
	}
}
