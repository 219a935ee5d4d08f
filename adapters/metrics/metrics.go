// Package metrics provides Prometheus metrics collection for the billing
// back office.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the back office.
type Collector struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Billing metrics
	PaymentsCreated   *prometheus.CounterVec
	PaymentsVoided    prometheus.Counter
	DiscountClamps    prometheus.Counter
	CommitmentsOpened prometheus.Counter
	CommitmentRejects prometheus.Counter
	Regularizations   *prometheus.CounterVec
	CommitmentsLapsed prometheus.Counter
	AdvanceFollowUps  prometheus.Counter

	// Reconcile metrics
	ReconcileRuns    prometheus.Counter
	ReconcileErrors  prometheus.Counter
	ReconcileChecked prometheus.Gauge
	ReconcileFixed   prometheus.Gauge

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "backoffice",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "backoffice",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"reason"},
		),

		PaymentsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "payments_created_total",
				Help:      "Total payments recorded, by status strategy",
			},
			[]string{"strategy"},
		),
		PaymentsVoided: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "payments_voided_total",
				Help:      "Total payments voided",
			},
		),
		DiscountClamps: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "discount_clamps_total",
				Help:      "Total payments whose discount exceeded the charges",
			},
		),
		CommitmentsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "commitments_opened_total",
				Help:      "Total postponement commitments opened",
			},
		),
		CommitmentRejects: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "commitment_rejects_total",
				Help:      "Postponement requests rejected because one was already open",
			},
		),
		Regularizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "regularizations_total",
				Help:      "Total commitments regularized, by resulting status",
			},
			[]string{"status"},
		),
		CommitmentsLapsed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "commitments_lapsed_total",
				Help:      "Total commitments marked late after their engagement date passed",
			},
		),
		AdvanceFollowUps: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "advance_followups_total",
				Help:      "Total follow-up drafts created for advance-payment installations",
			},
		),

		ReconcileRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "reconcile_runs_total",
				Help:      "Total bulk reconciliation runs triggered",
			},
		),
		ReconcileErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "reconcile_errors_total",
				Help:      "Total bulk reconciliation runs that failed",
			},
		),
		ReconcileChecked: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "backoffice",
				Name:      "reconcile_checked",
				Help:      "Accounts checked by the last reconciliation run",
			},
		),
		ReconcileFixed: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "backoffice",
				Name:      "reconcile_fixed",
				Help:      "Accounts corrected by the last reconciliation run",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "backoffice",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "backoffice",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}
