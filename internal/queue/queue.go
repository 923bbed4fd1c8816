// Package queue delivers photo jobs to the receipt worker with bounded
// retries. Redis (asynq) backs multi-process deployments; the in-memory
// queue serves single-process runs and tests.
package queue

import (
	"context"
	"errors"
	"time"
)

// Handle identifies an accepted job.
type Handle struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
}

// Attempt describes the current delivery of a job. Retry counts earlier
// failed deliveries, so the first attempt has Retry 0.
type Attempt struct {
	Retry    int
	MaxRetry int
}

// Number is the 1-based attempt number.
func (a Attempt) Number() int { return a.Retry + 1 }

// Final reports whether a failure of this attempt exhausts the job.
func (a Attempt) Final() bool { return a.Retry >= a.MaxRetry }

// Handler processes one delivery of a job. A non-nil error schedules a
// retry unless the attempt was final.
type Handler interface {
	Handle(ctx context.Context, job Job, attempt Attempt) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job, attempt Attempt) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job Job, attempt Attempt) error {
	return f(ctx, job, attempt)
}

// Enqueuer accepts jobs for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) (*Handle, error)
}

// Stats are the queue counters reported to operators.
type Stats struct {
	Backend   string `json:"backend"`
	Queue     string `json:"queue"`
	Pending   int64  `json:"pending"`
	InFlight  int64  `json:"in_flight"`
	Retrying  int64  `json:"retrying"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// JobState is where a job is in its lifecycle.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateActive    JobState = "active"
	JobStateRetry     JobState = "retry"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// JobInfo is the status of one job.
type JobInfo struct {
	ID          string     `json:"id"`
	Queue       string     `json:"queue"`
	Kind        Kind       `json:"kind"`
	RecordID    uint       `json:"record_id,omitempty"`
	State       JobState   `json:"state"`
	Retried     int        `json:"retried"`
	MaxRetry    int        `json:"max_retry"`
	LastError   string     `json:"last_error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Inspector reports queue counters and the status of single jobs.
type Inspector interface {
	Stats(ctx context.Context) (*Stats, error)
	// Job returns ErrJobNotFound for unknown ids and for jobs past retention.
	Job(ctx context.Context, id string) (*JobInfo, error)
}

// DefaultQueue is the queue photo jobs are placed on.
const DefaultQueue = "fotos"

// Policy bounds how a job is retried.
type Policy struct {
	MaxRetry  int
	Backoff   []time.Duration
	Timeout   time.Duration
	Retention time.Duration
}

// DefaultPolicy retries three times after 10s, 30s and 60s, gives each
// attempt five minutes and keeps finished jobs for an hour.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetry:  3,
		Backoff:   []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second},
		Timeout:   300 * time.Second,
		Retention: time.Hour,
	}
}

// Delay returns the wait before the retry that follows failure number n
// (1-based). Past the end of Backoff the last step repeats.
func (p Policy) Delay(n int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	i := n - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.Backoff) {
		i = len(p.Backoff) - 1
	}
	return p.Backoff[i]
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the queue gives up on the job without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
