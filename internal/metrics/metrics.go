// Package metrics exposes the Prometheus instruments of the job pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobRuns counts job invocations by job and outcome (success, failure).
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reclaim",
	Name:      "job_runs_total",
	Help:      "Total job invocations.",
}, []string{"job", "outcome"})

// JobDuration tracks how long each job invocation took.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "reclaim",
	Name:      "job_duration_seconds",
	Help:      "Job invocation duration in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
}, []string{"job"})

// UsersProcessed counts users a job handled.
var UsersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reclaim",
	Name:      "job_users_processed_total",
	Help:      "Total users handled by jobs.",
}, []string{"job"})

// UserErrors counts recoverable per-user failures.
var UserErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reclaim",
	Name:      "job_user_errors_total",
	Help:      "Total per-user failures recorded by jobs.",
}, []string{"job"})

// PushDeliveries counts deliveries accepted by each push gateway.
var PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reclaim",
	Name:      "push_deliveries_total",
	Help:      "Total push deliveries accepted by gateways.",
}, []string{"platform"})

// PushFailures counts failed gateway batches.
var PushFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reclaim",
	Name:      "push_failures_total",
	Help:      "Total push gateway batch failures.",
}, []string{"platform"})

// WebhookCalls counts partner webhook calls by response status class.
var WebhookCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reclaim",
	Name:      "webhook_calls_total",
	Help:      "Total partner webhook calls.",
}, []string{"status"})
