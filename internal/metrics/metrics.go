package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// replica
	ChangesApplied  prometheus.Counter
	ChangesSkipped  prometheus.Counter
	ChangesRejected prometheus.Counter
	ReplicaRows     prometheus.Gauge
	TransportErrors prometheus.Counter
	CheckpointSaves prometheus.Counter

	// live queries
	Recomputes    prometheus.Counter
	ActiveQueries prometheus.Gauge
	RecomputeSec  prometheus.Histogram

	// http
	PageCacheHits   prometheus.Counter
	PageCacheMisses prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_replica_changes_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_replica_changes_skipped_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_replica_changes_rejected_total"})
	rows := prometheus.NewGauge(prometheus.GaugeOpts{Name: "parcel_replica_rows"})
	transportErrs := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_feed_transport_errors_total"})
	saves := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_replica_checkpoint_saves_total"})

	recomputes := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_livequery_recomputes_total"})
	active := prometheus.NewGauge(prometheus.GaugeOpts{Name: "parcel_livequery_active"})
	recomputeSec := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parcel_livequery_recompute_seconds",
		Buckets: prometheus.DefBuckets,
	})

	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_page_cache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "parcel_page_cache_misses_total"})

	r.MustRegister(applied, skipped, rejected, rows, transportErrs, saves, recomputes, active, recomputeSec, hits, misses)
	return &Registry{
		reg:             r,
		ChangesApplied:  applied,
		ChangesSkipped:  skipped,
		ChangesRejected: rejected,
		ReplicaRows:     rows,
		TransportErrors: transportErrs,
		CheckpointSaves: saves,
		Recomputes:      recomputes,
		ActiveQueries:   active,
		RecomputeSec:    recomputeSec,
		PageCacheHits:   hits,
		PageCacheMisses: misses,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
