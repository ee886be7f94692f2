// ABOUTME: Prometheus counters for update dispatch
// ABOUTME: Counts updates by kind, commands, callback actions and failed deliveries

package dispatcher

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the dispatcher's Prometheus collectors.
type Metrics struct {
	Updates          *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	Actions          *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	StorageFailures  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "d2p",
			Name:      "updates_total",
			Help:      "Inbound updates dispatched, by kind.",
		}, []string{"kind"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "d2p",
			Name:      "commands_total",
			Help:      "Slash commands handled, by command. Unregistered commands count as \"unknown\".",
		}, []string{"command"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "d2p",
			Name:      "callback_actions_total",
			Help:      "Callback actions handled, by action. Unregistered actions count as \"unknown\".",
		}, []string{"action"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "d2p",
			Name:      "delivery_failures_total",
			Help:      "Outbound Bot API calls that failed, by method.",
		}, []string{"method"}),
		StorageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "d2p",
			Name:      "storage_failures_total",
			Help:      "Updates abandoned because the conversation store failed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Updates, m.Commands, m.Actions, m.DeliveryFailures, m.StorageFailures)
	}
	return m
}
