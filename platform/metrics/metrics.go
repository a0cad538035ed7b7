// Package metrics exposes Prometheus collectors for identity resolution.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution holds the collectors recorded by the resolution service.
type Resolution struct {
	ResolutionsTotal    *prometheus.CounterVec
	Conflicts           prometheus.Counter
	Duration            prometheus.Histogram
	InvariantViolations prometheus.Counter
	LockFallbacks       prometheus.Counter
}

// NewResolution registers the resolution collectors on reg.
// A nil reg falls back to the default registerer.
func NewResolution(reg prometheus.Registerer) *Resolution {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Resolution{
		ResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "clients",
			Name:      "resolutions_total",
			Help:      "Lead-to-client resolutions by outcome and matching key.",
		}, []string{"outcome", "matched_by"}),
		Conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "clients",
			Name:      "create_conflicts_total",
			Help:      "Client creations that lost a race on an identity key.",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "erp",
			Subsystem: "clients",
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving a lead to a client.",
			Buckets:   prometheus.DefBuckets,
		}),
		InvariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "clients",
			Name:      "billing_invariant_violations_total",
			Help:      "Clients observed with more than one active billing default.",
		}),
		LockFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "clients",
			Name:      "identity_lock_fallbacks_total",
			Help:      "Resolutions that proceeded without the distributed identity lock.",
		}),
	}
}

// Observe records one finished resolution. A nil receiver is a no-op.
func (m *Resolution) Observe(outcome, matchedBy string, started time.Time) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(outcome, matchedBy).Inc()
	m.Duration.Observe(time.Since(started).Seconds())
}

// Conflict counts a lost create race.
func (m *Resolution) Conflict() {
	if m == nil {
		return
	}
	m.Conflicts.Inc()
}

// InvariantViolation counts a broken billing-default invariant.
func (m *Resolution) InvariantViolation() {
	if m == nil {
		return
	}
	m.InvariantViolations.Inc()
}

// LockFallback counts a resolution that ran without the Redis lock.
func (m *Resolution) LockFallback() {
	if m == nil {
		return
	}
	m.LockFallbacks.Inc()
}
