package obs

import "github.com/prometheus/client_golang/prometheus"

var (
	// Registry holds every docflow collector.
	Registry = prometheus.NewRegistry()

	PermissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_permission_decisions_total",
			Help: "Permission checks by action, outcome and deciding step.",
		},
		[]string{"action", "outcome", "step"},
	)

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_transitions_total",
			Help: "Workflow transitions by domain, action and result.",
		},
		[]string{"domain", "action", "result"},
	)

	NumberingAllocations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_numbering_allocations_total",
		Help: "Issued document numbers.",
	})

	NumberingConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docflow_numbering_conflicts_total",
		Help: "Lost allocation races that were retried.",
	})

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_events_published_total",
			Help: "Domain event emissions by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(PermissionDecisions, Transitions, NumberingAllocations, NumberingConflicts, EventsPublished)
}
