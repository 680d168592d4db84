package geofence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whereabouts_transitions_total",
		Help: "Geofence transition events received, by transition and outcome.",
	}, []string{"transition", "outcome"})

	regionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whereabouts_transition_region_failures_total",
		Help: "Regions whose transition processing failed or panicked.",
	})

	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whereabouts_geofence_checks_total",
		Help: "Pull-based geofence checks, by result.",
	}, []string{"result"})

	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whereabouts_region_commands_total",
		Help: "Region commands submitted to the host, by kind and outcome.",
	}, []string{"kind", "outcome"})

	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "whereabouts_geofence_check_duration_seconds",
		Help:    "Time spent evaluating a batch of geofence checks.",
		Buckets: prometheus.DefBuckets,
	})
)
