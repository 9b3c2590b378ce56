package metrics

import (
	"runtime"
	"time"
)

// Compute outcomes
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
	OutcomeRejected  = "rejected"
)

// ComputeSummary is what the gateway reports about a finished computation
type ComputeSummary struct {
	Runner          string
	Outcome         string
	Duration        time.Duration
	Nodes           int
	Links           int
	DroppedLinks    int
	PowerIterations int
	LocalMovePasses int
	Communities     int
	Modularity      float64
	PhaseMillis     map[string]float64
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordCompute records a finished computation. Graph and algorithm figures
// are only observed for successful runs.
func (r *Registry) RecordCompute(s ComputeSummary) {
	r.ComputeRequestsTotal.WithLabelValues(s.Runner, s.Outcome).Inc()
	r.ComputeDuration.WithLabelValues(s.Runner).Observe(s.Duration.Seconds())

	if s.Outcome != OutcomeSucceeded {
		return
	}

	r.ComputeGraphNodes.Observe(float64(s.Nodes))
	r.ComputeGraphLinks.Observe(float64(s.Links))
	r.ComputeDroppedLinks.Add(float64(s.DroppedLinks))
	r.PowerIterations.Observe(float64(s.PowerIterations))
	r.LocalMovePasses.Observe(float64(s.LocalMovePasses))
	r.CommunitiesDetected.Observe(float64(s.Communities))
	r.LastModularity.Set(s.Modularity)
	r.LastSuccessTimestamp.SetToCurrentTime()

	for phase, ms := range s.PhaseMillis {
		r.ComputePhaseDuration.WithLabelValues(phase).Observe(ms / 1000)
	}
}

// RecordRejected records a computation turned away by a busy gateway
func (r *Registry) RecordRejected(runner string) {
	r.ComputeRejectedTotal.Inc()
	r.ComputeRequestsTotal.WithLabelValues(runner, OutcomeRejected).Inc()
}

// RecordQueueWait records how long a call waited for the gateway slot
func (r *Registry) RecordQueueWait(d time.Duration) {
	r.ComputeQueueWait.Observe(d.Seconds())
}

// RecordTransportMessage records one encoded protocol message
func (r *Registry) RecordTransportMessage(transport, msgType, direction string, size int) {
	r.TransportMessagesTotal.WithLabelValues(transport, msgType, direction).Inc()
	r.TransportBytesTotal.WithLabelValues(transport, direction).Add(float64(size))
}

// RecordTransportError records a transport failure at the given stage
func (r *Registry) RecordTransportError(transport, stage string) {
	r.TransportErrorsTotal.WithLabelValues(transport, stage).Inc()
}

// UpdateSystemMetrics refreshes uptime, goroutine and memory gauges
func (r *Registry) UpdateSystemMetrics() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.UptimeSeconds.Set(time.Since(r.startedAt).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(mem.Alloc))
	r.MemorySysBytes.Set(float64(mem.Sys))
}

// RecordResponseSize records the size of an HTTP response body
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight marks an HTTP request as started
func (r *Registry) IncHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight marks an HTTP request as finished
func (r *Registry) DecHTTPRequestsInFlight() {
	r.HTTPRequestsInFlight.Dec()
}
