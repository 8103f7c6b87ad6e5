package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Metering
	AdmissionsTotal   *prometheus.CounterVec // outcome: admitted|rejected
	GenerationLatency prometheus.Histogram
	GenerationErrors  prometheus.Counter

	// Billing
	PaymentsVerified *prometheus.CounterVec // result: applied|duplicate|not_confirmed|failed
	CheckoutsCreated prometheus.Counter

	// Sweeps
	SweepDuration *prometheus.HistogramVec // sweep: trial_expiry|rollover
	SweepAccounts *prometheus.CounterVec   // sweep: trial_expiry|rollover

	// Database
	DatabaseOperations *prometheus.CounterVec // operation, status
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		AdmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Total number of metered admission decisions",
		}, []string{"outcome"}),
		GenerationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent on downstream generation calls",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		GenerationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Total number of failed generation calls",
		}),
		PaymentsVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_verified_total",
			Help:      "Total number of payment verification outcomes",
		}, []string{"result"}),
		CheckoutsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_created_total",
			Help:      "Total number of payment intents created",
		}),
		SweepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent running ledger sweeps",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"sweep"}),
		SweepAccounts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_accounts_total",
			Help:      "Total number of accounts transitioned by sweeps",
		}, []string{"sweep"}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations by status",
		}, []string{"operation", "status"}),
	}
}
