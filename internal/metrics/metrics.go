// Package metrics exposes Prometheus collectors for client onboarding.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation outcomes
const (
	OutcomeValid       = "valid"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeCancelled   = "cancelled"
)

// Metrics groups every collector the service records. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	ValidationOutcome *prometheus.CounterVec
	ValidationLatency prometheus.Histogram

	ClientsCreated        prometheus.Counter
	OnboardingRejected    *prometheus.CounterVec
	Compensations         prometheus.Counter
	StorageDeleteFailures prometheus.Counter
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ValidationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clients_cedula_validation_total",
			Help: "Civil registry validation calls by outcome",
		}, []string{"outcome"}),

		ValidationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clients_cedula_validation_duration_seconds",
			Help:    "Duration of civil registry validation calls",
			Buckets: []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 2, 5},
		}),

		ClientsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "clients_created_total",
			Help: "Clients registered successfully",
		}),

		OnboardingRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clients_onboarding_rejected_total",
			Help: "Client registrations rejected by reason",
		}, []string{"reason"}), // reason: conflict, bad_request, validator_unavailable, error

		Compensations: factory.NewCounter(prometheus.CounterOpts{
			Name: "clients_image_compensations_total",
			Help: "Uploaded images deleted because the registration did not complete",
		}),

		StorageDeleteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "clients_storage_delete_failures_total",
			Help: "Object deletions that failed and were ignored",
		}),
	}
}

func (m *Metrics) ObserveValidation(outcome string, d time.Duration) {
	if m != nil {
		m.ValidationOutcome.WithLabelValues(outcome).Inc()
		m.ValidationLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncClientCreated() {
	if m != nil {
		m.ClientsCreated.Inc()
	}
}

func (m *Metrics) IncRejected(reason string) {
	if m != nil {
		m.OnboardingRejected.WithLabelValues(reason).Inc()
	}
}

// IncCompensation counts one image removed during rollback
func (m *Metrics) IncCompensation() {
	if m != nil {
		m.Compensations.Inc()
	}
}

func (m *Metrics) IncStorageDeleteFailure() {
	if m != nil {
		m.StorageDeleteFailures.Inc()
	}
}
