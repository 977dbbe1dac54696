package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron run results.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// CronJobMetrics tracks the cron worker. A nil value records nothing.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	reconciled  *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron series on reg.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Duration of cron jobs in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job executions by result.",
		}, []string{"job", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of each job.",
		}, []string{"job"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "payments_reconciled_total",
			Help:      "Stale payments re-fetched by the reconcile sweep, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess, m.reconciled)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a successful run and stamps its completion time.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, RunSucceeded).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), RunFailed).Inc()
}

// ObserveReconcile adds one tenant sweep: payments checked against the
// gateway and how many of them changed local state.
func (c *CronJobMetrics) ObserveReconcile(checked, applied int) {
	if c == nil || c.reconciled == nil {
		return
	}
	if checked > applied {
		c.reconciled.WithLabelValues("unchanged").Add(float64(checked - applied))
	}
	if applied > 0 {
		c.reconciled.WithLabelValues("applied").Add(float64(applied))
	}
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
