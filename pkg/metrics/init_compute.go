package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initComputeMetrics() {
	factory := promauto.With(r.registry)

	r.ComputeRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_requests_total",
			Help:      "Metrics computations by runner and outcome",
		},
		[]string{"runner", "outcome"},
	)

	r.ComputeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "End-to-end computation latency, queue wait excluded",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"runner"},
	)

	r.ComputePhaseDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_phase_duration_seconds",
			Help:      "Duration of each engine phase",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18),
		},
		[]string{"phase"},
	)

	r.ComputeInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compute_in_flight",
			Help:      "Computations currently holding a gateway slot",
		},
	)

	r.ComputeQueueWait = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_queue_wait_seconds",
			Help:      "Time spent waiting for the gateway slot",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	r.ComputeRejectedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_rejected_total",
			Help:      "Computations rejected because the gateway slot was busy",
		},
	)

	r.ComputeGraphNodes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_graph_nodes",
			Help:      "Node count of computed graphs",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	r.ComputeGraphLinks = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_graph_links",
			Help:      "Link count of computed graphs",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		},
	)

	r.ComputeDroppedLinks = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_dropped_links_total",
			Help:      "Links dropped because an endpoint was not a known node",
		},
	)

	r.PowerIterations = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_power_iterations",
			Help:      "Power iterations performed per centrality computation",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 150, 200},
		},
	)

	r.LocalMovePasses = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_local_move_passes",
			Help:      "Local-move passes performed per community detection",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50, 100},
		},
	)

	r.CommunitiesDetected = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_communities",
			Help:      "Communities in each computed partition",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	r.LastModularity = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compute_last_modularity",
			Help:      "Modularity of the most recent successful computation",
		},
	)

	r.LastSuccessTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compute_last_success_timestamp_seconds",
			Help:      "Unix time of the most recent successful computation",
		},
	)
}
