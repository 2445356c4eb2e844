// Package metrics exposes Prometheus counters for credential operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels. Business failures and infrastructure errors are counted
// separately so dashboards can tell an attack from an outage.
const (
	OutcomeSuccess      = "success"
	OutcomeConflict     = "conflict"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"

	OutcomeRevoked = "revoked"
	OutcomeNoop    = "noop"
)

// Metrics holds the counter vectors. A nil *Metrics is valid and records
// nothing, so callers never have to branch on whether metrics are enabled.
type Metrics struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	revocations   *prometheus.CounterVec
}

// New registers the authkit counters with reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	newVec := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authkit",
			Name:      name,
			Help:      help,
		}, []string{"outcome"})
	}

	return &Metrics{
		registrations: newVec("registrations_total", "Registration attempts by outcome."),
		logins:        newVec("logins_total", "Login attempts by outcome."),
		refreshes:     newVec("refreshes_total", "Refresh-token exchanges by outcome."),
		revocations:   newVec("revocations_total", "Refresh-token revocations by outcome."),
	}
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Revocation(outcome string) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(outcome).Inc()
}
