package queue

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attempt outcomes.
const (
	outcomeSuccess   = "success"
	outcomeRetry     = "retry"
	outcomeExhausted = "exhausted"
)

var (
	jobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "derroche_jobs_enqueued_total",
			Help: "Jobs accepted by the queue.",
		},
		[]string{"backend", "kind"},
	)

	jobAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "derroche_job_attempts_total",
			Help: "Job deliveries by outcome.",
		},
		[]string{"kind", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "derroche_job_duration_seconds",
			Help:    "Time spent handling one job delivery.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	jobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "derroche_jobs_in_flight",
			Help: "Job deliveries currently being handled by this process.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsEnqueued, jobAttempts, jobDuration, jobsInFlight)
}

// Instrument wraps h with Prometheus counters for attempts, outcomes and duration.
func Instrument(h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, job Job, attempt Attempt) error {
		start := time.Now()
		jobsInFlight.Inc()
		defer jobsInFlight.Dec()

		err := h.Handle(ctx, job, attempt)

		kind := string(job.Kind)
		jobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			jobAttempts.WithLabelValues(kind, outcomeSuccess).Inc()
		case attempt.Final() || IsPermanent(err):
			jobAttempts.WithLabelValues(kind, outcomeExhausted).Inc()
		default:
			jobAttempts.WithLabelValues(kind, outcomeRetry).Inc()
		}
		return err
	})
}
