package consumption

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the budget engine.
type Metrics struct {
	// Charge validation outcomes
	chargeChecks  *prometheus.CounterVec
	chargeRejects *prometheus.CounterVec

	// Per-config usage
	budgetUsage *prometheus.GaugeVec

	// Routing reconciliation
	reconcileWrites prometheus.Counter

	// Validation latency
	checkDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the process-wide Metrics instance. Collectors are
// registered with the default registry on first call.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			chargeChecks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cantina_consumption_charge_checks_total",
					Help: "Total number of charge validations performed",
				},
				[]string{"config", "result"},
			),

			chargeRejects: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cantina_consumption_charge_rejections_total",
					Help: "Total number of rejected charges",
				},
				[]string{"config", "reason"},
			),

			budgetUsage: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "cantina_consumption_budget_usage_percentage",
					Help: "Current budget usage as percentage (0-100)",
				},
				[]string{"config"},
			),

			reconcileWrites: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "cantina_consumption_reconcile_writes_total",
					Help: "Total number of directory writes performed by routing reconciliation",
				},
			),

			checkDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "cantina_consumption_check_duration_seconds",
					Help:    "Charge validation latency in seconds",
					Buckets: prometheus.DefBuckets,
				},
			),
		}
	})
	return metrics
}

// RecordCheck records one validation outcome.
func (m *Metrics) RecordCheck(configName, result string, seconds float64) {
	if m == nil {
		return
	}
	m.chargeChecks.WithLabelValues(configName, result).Inc()
	m.checkDuration.Observe(seconds)
}

// RecordRejection records one rejected charge.
func (m *Metrics) RecordRejection(configName, reason string) {
	if m == nil {
		return
	}
	m.chargeRejects.WithLabelValues(configName, reason).Inc()
}

// SetUsage records the current usage percentage for a config.
func (m *Metrics) SetUsage(configName string, percentage float64) {
	if m == nil {
		return
	}
	m.budgetUsage.WithLabelValues(configName).Set(percentage)
}

// AddReconcileWrites records directory writes from a reconciliation.
func (m *Metrics) AddReconcileWrites(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileWrites.Add(float64(n))
}
