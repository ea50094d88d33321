// Package metrics exposes engine measurements to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"vault_aggregator/internal/app/port"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vault_aggregator"

// Recorder implements port.MetricsRecorder with Prometheus collectors.
type Recorder struct {
	chainFetches   *prometheus.CounterVec
	chainDuration  *prometheus.HistogramVec
	aggregations   prometheus.Counter
	aggDuration    prometheus.Histogram
	chainsFailed   prometheus.Gauge
	pointersInSync prometheus.Gauge
}

var _ port.MetricsRecorder = (*Recorder)(nil)

// NewRecorder creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		chainFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_fetch_total",
			Help:      "Per-chain balance fetches by outcome.",
		}, []string{"chain_id", "outcome"}),
		chainDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_fetch_duration_seconds",
			Help:      "Duration of per-chain balance fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"chain_id"}),
		aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_runs_total",
			Help:      "Completed aggregation runs.",
		}),
		aggDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Wall time of aggregation runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		chainsFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregation_failed_chains",
			Help:      "Failed chains in the most recent aggregation run.",
		}),
		pointersInSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_pointers_synchronized",
			Help:      "1 when the legacy and multichain pointers agree.",
		}),
	}
	for _, c := range []prometheus.Collector{
		r.chainFetches, r.chainDuration, r.aggregations, r.aggDuration, r.chainsFailed, r.pointersInSync,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewRecorder is like NewRecorder but panics on registration errors.
func MustNewRecorder(reg prometheus.Registerer) *Recorder {
	r, err := NewRecorder(reg)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Recorder) ObserveChainFetch(chainID uint64, outcome string, elapsed time.Duration) {
	id := strconv.FormatUint(chainID, 10)
	r.chainFetches.WithLabelValues(id, outcome).Inc()
	r.chainDuration.WithLabelValues(id).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveAggregation(succeeded, failed int, elapsed time.Duration) {
	r.aggregations.Inc()
	r.aggDuration.Observe(elapsed.Seconds())
	r.chainsFailed.Set(float64(failed))
}

func (r *Recorder) SetPointersSynchronized(synchronized bool) {
	if synchronized {
		r.pointersInSync.Set(1)
		return
	}
	r.pointersInSync.Set(0)
}
