package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	Registrations    prometheus.Counter
	RelationsAdded   *prometheus.CounterVec
	Attestations     prometheus.Counter
	AuditAppends     prometheus.Counter
	PausedRejections prometheus.Counter
	AdminActions     *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on the given registerer; tests pass a fresh
// registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "kinregistry_registrations_total",
			Help: "Total number of identities registered.",
		}),
		RelationsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kinregistry_relations_added_total",
			Help: "Total number of relation links added, by kind.",
		}, []string{"kind"}),
		Attestations: factory.NewCounter(prometheus.CounterOpts{
			Name: "kinregistry_attestations_total",
			Help: "Total number of relation attestations recorded.",
		}),
		AuditAppends: factory.NewCounter(prometheus.CounterOpts{
			Name: "kinregistry_audit_appends_total",
			Help: "Total number of audit entries appended.",
		}),
		PausedRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "kinregistry_paused_rejections_total",
			Help: "Total number of calls rejected because the registry was paused.",
		}),
		AdminActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kinregistry_admin_actions_total",
			Help: "Total number of admin control-plane actions, by action.",
		}, []string{"action"}),
	}
}
