package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SweepErrorTypeDeadlineExceeded = "deadline_exceeded"
	SweepErrorTypeDB               = "db"
	SweepErrorTypeBusinessRule     = "business_rule"
	SweepErrorTypeUnknown          = "unknown"
)

// SweepMetrics captures breach-sweep scheduler health signals.
type SweepMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	flaggedTotal   prometheus.Counter
	batchProcessed *prometheus.CounterVec
	runLoopLag     prometheus.Observer
}

var (
	sweepMetricsOnce sync.Once
	sweepMetrics     *SweepMetrics
)

// Sweep returns the singleton sweep metrics registry.
func Sweep() *SweepMetrics {
	return SweepWithConfig(Config{})
}

// SweepWithConfig returns the singleton sweep metrics registry using config labels.
func SweepWithConfig(cfg Config) *SweepMetrics {
	sweepMetricsOnce.Do(func() {
		sweepMetrics = newSweepMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return sweepMetrics
}

// ResetSweepMetricsForTest resets the sweep metrics singleton for tests.
func ResetSweepMetricsForTest() {
	sweepMetricsOnce = sync.Once{}
	sweepMetrics = nil
}

func newSweepMetrics(registerer prometheus.Registerer, cfg Config) *SweepMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "incidentd"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incidentd_sweep_job_runs_total",
		Help:        "Sweep job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "incidentd_sweep_job_duration_seconds",
		Help:        "Sweep job latency to keep breach detection timely.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incidentd_sweep_job_timeouts_total",
		Help:        "Sweep job timeouts that delay breach flagging.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incidentd_sweep_job_errors_total",
		Help:        "Sweep job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	flaggedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "incidentd_sweep_breaches_flagged_total",
		Help:        "Incidents flagged as SLA-breached by the sweep.",
		ConstLabels: constLabels,
	})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "incidentd_sweep_batch_processed_total",
		Help:        "Sweep batch items processed to gauge throughput.",
		ConstLabels: constLabels,
	}, []string{"job"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "incidentd_sweep_runloop_lag_seconds",
		Help:        "Sweep run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		flaggedTotal,
		batchProcessed,
		runLoopLag,
	)

	return &SweepMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		flaggedTotal:   flaggedTotal,
		batchProcessed: batchProcessed,
		runLoopLag:     runLoopLag,
	}
}

// IncJobRun increments the run counter for a sweep job.
func (m *SweepMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records sweep job latency in seconds.
func (m *SweepMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the sweep job.
func (m *SweepMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the sweep job error counter with classification.
func (m *SweepMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySweepErrorType(err)).Inc()
}

// AddBreachesFlagged adds sweep-flagged incident counts.
func (m *SweepMetrics) AddBreachesFlagged(count int64) {
	if m == nil || m.flaggedTotal == nil || count <= 0 {
		return
	}
	m.flaggedTotal.Add(float64(count))
}

// AddBatchProcessed increments the batch processed counter for a job by count.
func (m *SweepMetrics) AddBatchProcessed(job string, count int) {
	if m == nil || m.batchProcessed == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job).Add(float64(count))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SweepMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	lag := duration
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// ClassifySweepErrorType returns a low-cardinality error type for logging.
func ClassifySweepErrorType(err error) string {
	if err == nil {
		return SweepErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SweepErrorTypeDeadlineExceeded
	}
	if isDBError(err) {
		return SweepErrorTypeDB
	}
	return SweepErrorTypeBusinessRule
}

// IsSweepErrorRetryable reports whether the sweep error should be retried.
func IsSweepErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBError(err)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
