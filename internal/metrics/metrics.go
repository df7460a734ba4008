// Package metrics exposes the service's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestsCreated  prometheus.Counter
	RequestsBypassed prometheus.Counter
	RequestsResolved *prometheus.CounterVec // label: outcome
	VotesAccepted    prometheus.Counter
	VotesRejected    *prometheus.CounterVec // label: reason
	ActiveRequests   prometheus.Gauge
	TrustAdjustments *prometheus.CounterVec // label: reason
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_requests_created_total",
			Help: "Consensus requests created for validation.",
		}),
		RequestsBypassed: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_requests_bypassed_total",
			Help: "Submissions accepted via the high-trust bypass.",
		}),
		RequestsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "validation_requests_resolved_total",
			Help: "Requests reaching a terminal outcome.",
		}, []string{"outcome"}),
		VotesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_votes_accepted_total",
			Help: "Votes persisted successfully.",
		}),
		VotesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "validation_votes_rejected_total",
			Help: "Votes rejected before persistence.",
		}, []string{"reason"}),
		ActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "validation_active_requests",
			Help: "Requests currently pending votes.",
		}),
		TrustAdjustments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_adjustments_total",
			Help: "Trust score adjustments applied, by reason.",
		}, []string{"reason"}),
	}
}
