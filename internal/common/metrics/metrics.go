// Package metrics holds the process-wide Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "advisor_worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	ConversationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_conversations_started_total",
			Help: "Conversations that entered a category",
		},
		[]string{"category"},
	)

	ConversationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_conversations_completed_total",
			Help: "Conversations that answered all questions of a category",
		},
		[]string{"category"},
	)

	ConversationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_conversation_errors_total",
			Help: "User-facing conversation errors by code",
		},
		[]string{"code"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisor_active_sessions",
			Help: "Conversation states held by the in-memory store",
		},
	)

	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_predictions_total",
			Help: "Predictions served by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_prediction_duration_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"task"},
	)

	EncodingMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_encoding_misses_total",
			Help: "Categorical values not present in the training vocabulary",
		},
		[]string{"feature"},
	)

	Retrains = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_retrains_total",
			Help: "Model retraining runs by result",
		},
		[]string{"result"},
	)

	FeedbackReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_feedback_received_total",
			Help: "Feedback records accepted per task",
		},
		[]string{"task"},
	)
)
