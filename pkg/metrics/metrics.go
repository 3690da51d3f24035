// Package metrics instruments the network core with prometheus collectors.
// A nil *Registry is valid and records nothing, so core packages can call
// recording helpers unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all collectors for one session
type Registry struct {
	MutationsTotal      *prometheus.CounterVec
	FlushesTotal        *prometheus.CounterVec
	FlushDuration       *prometheus.HistogramVec
	ReloadsTotal        prometheus.Counter
	ResolutionsTotal    *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
}

// NewRegistry creates all collectors and, when reg is non-nil, registers
// them. A nil reg still yields working collectors; they are just not exposed
// anywhere.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flownet_store_mutations_total",
			Help: "Collection mutations applied, by collection and operation",
		}, []string{"collection", "operation"}),
		FlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flownet_store_flushes_total",
			Help: "Durable snapshot flushes, by collection and status",
		}, []string{"collection", "status"}),
		FlushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flownet_store_flush_duration_seconds",
			Help:    "Durable snapshot flush latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection"}),
		ReloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flownet_network_reloads_total",
			Help: "Full network reloads from the external file store",
		}),
		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flownet_scope_resolutions_total",
			Help: "Property resolutions, by scope the value was found at",
		}, []string{"scope"}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flownet_scope_aggregation_duration_seconds",
			Help:    "Outer-scope aggregation walk latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			r.MutationsTotal,
			r.FlushesTotal,
			r.FlushDuration,
			r.ReloadsTotal,
			r.ResolutionsTotal,
			r.AggregationDuration,
		)
	}
	return r
}

// RecordMutation records n records touched by one collection operation
func (r *Registry) RecordMutation(collection, op string, n int) {
	if r == nil {
		return
	}
	r.MutationsTotal.WithLabelValues(collection, op).Add(float64(n))
}

// RecordFlush records the outcome of one durable flush
func (r *Registry) RecordFlush(collection, status string) {
	if r == nil {
		return
	}
	r.FlushesTotal.WithLabelValues(collection, status).Inc()
}

// RecordFlushDuration records how long one durable flush took
func (r *Registry) RecordFlushDuration(collection string, d time.Duration) {
	if r == nil {
		return
	}
	r.FlushDuration.WithLabelValues(collection).Observe(d.Seconds())
}

// RecordReload records one full network reload
func (r *Registry) RecordReload() {
	if r == nil {
		return
	}
	r.ReloadsTotal.Inc()
}

// RecordResolution records one property resolution and its provenance scope
func (r *Registry) RecordResolution(scope string) {
	if r == nil {
		return
	}
	r.ResolutionsTotal.WithLabelValues(scope).Inc()
}

// RecordAggregation records one aggregation walk
func (r *Registry) RecordAggregation(d time.Duration) {
	if r == nil {
		return
	}
	r.AggregationDuration.Observe(d.Seconds())
}
