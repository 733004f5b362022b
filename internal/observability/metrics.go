package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TriggerRuns counts trigger pipeline executions by entity type and
	// outcome (success, failure).
	TriggerRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_trigger_runs_total",
		Help: "Trigger pipeline executions.",
	}, []string{"entity_type", "outcome"})

	// TriggerRunDuration observes wall time of trigger pipeline executions.
	TriggerRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tessera_trigger_run_duration_seconds",
		Help:    "Duration of trigger pipeline executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity_type"})

	// RightsChecks counts rights evaluations by entity type and role action.
	RightsChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_rights_checks_total",
		Help: "Rights evaluations performed.",
	}, []string{"entity_type", "role_action"})

	// ModelPublishes counts model snapshot publishes by version key.
	ModelPublishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_model_publishes_total",
		Help: "Model snapshot publishes.",
	}, []string{"version"})

	// ModelVersionsLoaded tracks how many model versions are published.
	ModelVersionsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tessera_model_versions_loaded",
		Help: "Number of published model versions.",
	})

	// StepVersionsRecorded counts step version submissions by step name.
	StepVersionsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_step_versions_recorded_total",
		Help: "Step versions recorded.",
	}, []string{"step"})

	// InstanceCreations counts instance creations by entity type.
	InstanceCreations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tessera_instance_creations_total",
		Help: "Workflow instances created.",
	}, []string{"entity_type"})
)

// InitMetrics registers all engine instruments on the given registry.
func InitMetrics(reg *prometheus.Registry) {
	reg.MustRegister(
		TriggerRuns,
		TriggerRunDuration,
		RightsChecks,
		ModelPublishes,
		ModelVersionsLoaded,
		StepVersionsRecorded,
		InstanceCreations,
	)
}
