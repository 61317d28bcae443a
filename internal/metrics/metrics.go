package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine
	EvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slatrack_evaluation_duration_seconds",
			Help:    "Duration of one KPI, scorecard or integration evaluation including the record fetch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	EvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slatrack_evaluation_errors_total",
			Help: "Evaluations that failed, by error kind",
		},
		[]string{"operation", "kind"},
	)

	RecordsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slatrack_records_evaluated_total",
			Help: "Request records turned into facts",
		},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slatrack_records_skipped_total",
			Help: "Request records skipped because of a data integrity error",
		},
		[]string{"field"},
	)

	PartsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slatrack_record_parts_dropped_total",
			Help: "Invalid resource details or ratings left out of an otherwise valid record",
		},
		[]string{"field"},
	)

	// Storage
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slatrack_db_query_duration_seconds",
			Help:    "Duration of repository calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slatrack_db_query_errors_total",
			Help: "Repository calls that returned an error",
		},
		[]string{"operation"},
	)

	NonNumericValues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slatrack_db_non_numeric_values_total",
			Help: "NaN NUMERIC values read as NULL, by column",
		},
		[]string{"column"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slatrack_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slatrack_api_requests_total",
			Help: "API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slatrack_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slatrack_api_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	// Scheduler
	SnapshotRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slatrack_snapshot_runs_total",
			Help: "Scorecard snapshot runs by result",
		},
		[]string{"result"},
	)

	SnapshotLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slatrack_snapshot_last_success_timestamp_seconds",
			Help: "Unix time of the last successful snapshot run",
		},
	)

	ScorecardTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slatrack_scorecard_total_score",
			Help: "Latest snapshot total score by scope",
		},
		[]string{"scope"},
	)

	IntegrationIndex = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slatrack_integration_index",
			Help: "Latest snapshot integration index by scope",
		},
		[]string{"scope"},
	)
)

// RecordEvaluation records one engine call. kind labels the failure and is ignored when err is nil.
func RecordEvaluation(operation string, duration time.Duration, kind string, err error) {
	EvaluationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		EvaluationErrors.WithLabelValues(operation, kind).Inc()
	}
}

func RecordExtraction(evaluated int, skippedFields, droppedFields []string) {
	RecordsEvaluated.Add(float64(evaluated))
	for _, f := range skippedFields {
		RecordsSkipped.WithLabelValues(f).Inc()
	}
	for _, f := range droppedFields {
		PartsDropped.WithLabelValues(f).Inc()
	}
}

func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordNonNumeric(column string) {
	NonNumericValues.WithLabelValues(column).Inc()
}

func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordSnapshot records a scheduler run; scores maps a scope label to its total and integration index.
func RecordSnapshot(err error, scores map[string][2]float64) {
	if err != nil {
		SnapshotRuns.WithLabelValues("error").Inc()
		return
	}
	SnapshotRuns.WithLabelValues("ok").Inc()
	SnapshotLastSuccess.Set(float64(time.Now().Unix()))
	for scope, v := range scores {
		ScorecardTotal.WithLabelValues(scope).Set(v[0])
		IntegrationIndex.WithLabelValues(scope).Set(v[1])
	}
}
