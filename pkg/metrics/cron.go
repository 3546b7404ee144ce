package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records run outcomes, durations and processed-item counts for
// the maintenance jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
}

// NewCronJobMetrics registers the maintenance job metrics on the provided
// registerer. A nil registerer yields a no-op collector.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tokoku",
		Subsystem: "maintenance",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of one maintenance job run.",
		Buckets:   []float64{0.05, 0.25, 1, 5, 30, 120},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokoku",
		Subsystem: "maintenance",
		Name:      "job_runs_total",
		Help:      "Maintenance job runs by outcome.",
	}, []string{"job", "result"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokoku",
		Subsystem: "maintenance",
		Name:      "job_items_total",
		Help:      "Rows a maintenance job acted on: holds swept, orders canceled, vouchers granted.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, items)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
		items:    items,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a successful run of the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "success").Inc()
}

// IncFailure counts a failed run of the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), "failure").Inc()
}

// AddItems counts rows the named job acted on.
func (c *CronJobMetrics) AddItems(job string, n int64) {
	if c == nil || c.items == nil || n <= 0 {
		return
	}
	c.items.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
