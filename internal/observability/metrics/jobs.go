package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonDeadlock             = "deadlock"
	JobReasonNotFound             = "not_found"
	JobReasonUnknown              = "unknown"

	JobSkipReasonLockHeld = "lock_held"
)

// JobMetrics captures background job health.
type JobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	processed   *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	runLoopLag  prometheus.Observer
	lastSuccess *prometheus.GaugeVec
}

func NewJobMetrics(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := cfg.constLabels()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "achatons_job_runs_total",
		Help:        "Background job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "achatons_job_duration_seconds",
		Help:        "Background job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "achatons_job_errors_total",
		Help:        "Background job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "achatons_job_processed_total",
		Help:        "Items processed by background jobs.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "achatons_job_skipped_total",
		Help:        "Background job runs skipped by reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "achatons_job_runloop_lag_seconds",
		Help:        "Run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "achatons_job_last_success_timestamp_seconds",
		Help:        "Unix time of the last successful run.",
		ConstLabels: constLabels,
	}, []string{"job"})

	registerer.MustRegister(runs, duration, jobErrors, processed, skipped, runLoopLag, lastSuccess)

	return &JobMetrics{
		runs:        runs,
		duration:    duration,
		errors:      jobErrors,
		processed:   processed,
		skipped:     skipped,
		runLoopLag:  runLoopLag,
		lastSuccess: lastSuccess,
	}
}

func (m *JobMetrics) IncRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *JobMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *JobMetrics) IncError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *JobMetrics) AddProcessed(job, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.processed.WithLabelValues(job, resource).Add(float64(count))
}

func (m *JobMetrics) IncSkipped(job, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(job, reason).Inc()
}

func (m *JobMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil {
		return
	}
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

func (m *JobMetrics) MarkSuccess(job string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(job).Set(float64(at.Unix()))
}

// ClassifyJobReason maps job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return JobReasonNotFound
	}
	switch pgCode(err) {
	case "55P03":
		return JobReasonDBLockTimeout
	case "40001":
		return JobReasonSerializationFailure
	case "40P01":
		return JobReasonDeadlock
	}
	return JobReasonUnknown
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
