package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ResultsApplied       *prometheus.CounterVec
	EventsHandled        *prometheus.CounterVec
	VersionConflicts     prometheus.Counter
	MatchesMaterialized  prometheus.Counter
	MaterializationRaces prometheus.Counter
	Resets               prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResultsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playoff",
			Name:      "results_total",
			Help:      "Match results submitted to the advancement engine, by outcome.",
		}, []string{"outcome"}),
		EventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playoff",
			Name:      "completion_events_total",
			Help:      "Match finalized events consumed, by disposition.",
		}, []string{"disposition"}),
		VersionConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "playoff",
			Name:      "version_conflicts_total",
			Help:      "Optimistic writes that lost against a concurrent writer.",
		}),
		MatchesMaterialized: f.NewCounter(prometheus.CounterOpts{
			Namespace: "playoff",
			Name:      "matches_materialized_total",
			Help:      "Bracket slots bound to a concrete external match.",
		}),
		MaterializationRaces: f.NewCounter(prometheus.CounterOpts{
			Namespace: "playoff",
			Name:      "materialization_races_total",
			Help:      "Create calls that found an existing external match for the key.",
		}),
		Resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: "playoff",
			Name:      "resets_total",
			Help:      "Administrative resets applied.",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "playoff",
			Name:      "operation_duration_seconds",
			Help:      "Duration of mutating playoff operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) observe(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrResultConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidResult):
		return "invalid"
	case errors.Is(err, ErrVersionConflict):
		return "version_conflict"
	default:
		return "error"
	}
}
