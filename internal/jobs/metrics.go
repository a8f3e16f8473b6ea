// Package jobmetrics holds the Prometheus collectors shared by background jobs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	alerts    *prometheus.CounterVec
	invoices  prometheus.Counter
	reminders *prometheus.CounterVec
	health    prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome, returning err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddAlerts counts finance alerts raised by a health scan.
func (m *Metrics) AddAlerts(kind, severity string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.alerts.WithLabelValues(kind, severity).Add(float64(count))
}

// AddInvoices counts receivables generated by recurring rules.
func (m *Metrics) AddInvoices(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.invoices.Add(float64(count))
}

// AddReminder counts a delivered reminder for channel.
func (m *Metrics) AddReminder(channel string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(channel).Inc()
}

// SetHealthScore publishes the latest composite health score.
func (m *Metrics) SetHealthScore(score int) {
	if m == nil {
		return
	}
	m.health.Set(float64(score))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fiscalia_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fiscalia_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiscalia_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fiscalia_finance_alerts_total",
		Help: "Finance alerts raised by health scans, by kind and severity.",
	}, []string{"kind", "severity"})
	invoices := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fiscalia_automation_invoices_total",
		Help: "Receivables generated by recurring invoice rules.",
	})
	reminders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fiscalia_reminders_total",
		Help: "Payment reminders and overdue alerts delivered, by channel.",
	}, []string{"channel"})
	health := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fiscalia_health_score",
		Help: "Composite financial health score from the latest scan.",
	})
	registerer.MustRegister(runs, failures, duration, alerts, invoices, reminders, health)
	return &Metrics{
		runs:      runs,
		failures:  failures,
		duration:  duration,
		alerts:    alerts,
		invoices:  invoices,
		reminders: reminders,
		health:    health,
	}
}
