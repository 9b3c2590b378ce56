package gateway

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
	"github.com/dd0wney/cluso-graphmetrics/pkg/pubsub"
	"github.com/dd0wney/cluso-graphmetrics/pkg/snapshot"
	"github.com/dd0wney/cluso-graphmetrics/pkg/validation"
)

// SlotPolicy decides what happens to a call while another is running
type SlotPolicy string

const (
	// PolicyQueue makes callers wait for the slot
	PolicyQueue SlotPolicy = "queue"
	// PolicyReject fails callers immediately with ErrBusy
	PolicyReject SlotPolicy = "reject"
)

// ParseSlotPolicy parses a policy name
func ParseSlotPolicy(s string) (SlotPolicy, error) {
	switch SlotPolicy(s) {
	case PolicyQueue, PolicyReject:
		return SlotPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown slot policy %q (want %q or %q)", s, PolicyQueue, PolicyReject)
	}
}

// Option configures a Gateway
type Option func(*Gateway)

// WithPolicy sets the slot policy; the default is PolicyQueue
func WithPolicy(p SlotPolicy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithTimeout bounds every computation; zero means no bound
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// WithLimits sets the request size limits
func WithLimits(l validation.Limits) Option {
	return func(g *Gateway) { g.limits = l }
}

// WithStore keeps successful results as snapshots
func WithStore(s *snapshot.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithBroker publishes progress events on b
func WithBroker(b *pubsub.Broker[Event]) Option {
	return func(g *Gateway) { g.events = b }
}

// WithMetrics records computations in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(g *Gateway) { g.metrics = reg }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithTracer sets the tracer for gateway spans
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}
