// Package jobmetrics holds the Prometheus collectors shared by worker tasks.
package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "inventory_jobs"

// Metrics groups the worker collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	alerts      *prometheus.CounterVec
	reorderable *prometheus.GaugeVec
	pruned      prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors against registerer, or once against the
// default registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return buildMetrics(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Task executions by task type and outcome.",
		}, []string{"task", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Task execution time.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"task"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Low stock alerts raised, by stock status.",
		}, []string{"status"}),
		reorderable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reorder_suggestions",
			Help:      "Reorder suggestions found by the last scan, by business and urgency.",
		}, []string{"business_id", "urgency"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_keys_pruned_total",
			Help:      "Expired receipt idempotency keys removed.",
		}),
	}
	registerer.MustRegister(m.runs, m.duration, m.alerts, m.reorderable, m.pruned)
	return m
}

// Tracker times one task execution.
type Tracker struct {
	metrics *Metrics
	task    string
	start   time.Time
}

// Track starts timing task.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.task == "" {
		return err
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.metrics.runs.WithLabelValues(t.task, outcome).Inc()
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.start).Seconds())
	return err
}

// AddLowStockAlert counts an alert raised for a product in status.
func (m *Metrics) AddLowStockAlert(status string) {
	if m == nil || status == "" {
		return
	}
	m.alerts.WithLabelValues(status).Inc()
}

// SetReorderBacklog publishes the suggestion counts of a tenant's last scan.
func (m *Metrics) SetReorderBacklog(businessID int64, critical, low int) {
	if m == nil {
		return
	}
	id := strconv.FormatInt(businessID, 10)
	m.reorderable.WithLabelValues(id, "critical").Set(float64(critical))
	m.reorderable.WithLabelValues(id, "low").Set(float64(low))
}

// AddPrunedKeys counts removed idempotency keys.
func (m *Metrics) AddPrunedKeys(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}
