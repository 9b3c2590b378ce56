package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "graphmetrics"

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Compute Metrics
	ComputeRequestsTotal *prometheus.CounterVec
	ComputeDuration      *prometheus.HistogramVec
	ComputePhaseDuration *prometheus.HistogramVec
	ComputeInFlight      prometheus.Gauge
	ComputeQueueWait     prometheus.Histogram
	ComputeRejectedTotal prometheus.Counter
	ComputeGraphNodes    prometheus.Histogram
	ComputeGraphLinks    prometheus.Histogram
	ComputeDroppedLinks  prometheus.Counter
	PowerIterations      prometheus.Histogram
	LocalMovePasses      prometheus.Histogram
	CommunitiesDetected  prometheus.Histogram
	LastModularity       prometheus.Gauge
	LastSuccessTimestamp prometheus.Gauge

	// Transport Metrics
	TransportMessagesTotal *prometheus.CounterVec
	TransportBytesTotal    *prometheus.CounterVec
	TransportErrorsTotal   *prometheus.CounterVec

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry  *prometheus.Registry
	startedAt time.Time
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		startedAt: time.Now(),
	}

	r.initHTTPMetrics()
	r.initComputeMetrics()
	r.initTransportMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
