// Package gateway is the compute entry point shared by every surface. A
// Gateway owns a single computation slot, validates requests, hands them to a
// Runner and keeps the latest successful result. It replaces a process-wide
// worker with an explicit handle.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
	"github.com/dd0wney/cluso-graphmetrics/pkg/pubsub"
	"github.com/dd0wney/cluso-graphmetrics/pkg/snapshot"
	"github.com/dd0wney/cluso-graphmetrics/pkg/transport"
	"github.com/dd0wney/cluso-graphmetrics/pkg/validation"
)

var (
	// ErrBusy is returned under PolicyReject while another computation runs
	ErrBusy = errors.New("gateway busy: a computation is already running")
	// ErrCanceled marks a computation stopped by its caller or its deadline
	ErrCanceled = errors.New("computation canceled")
	// ErrExecution wraps every other failure of a computation
	ErrExecution = errors.New("computation failed")
	// ErrClosed is returned for calls made after Close
	ErrClosed = errors.New("gateway closed")
)

// EventsTopic receives the progress events of every computation
const EventsTopic = "progress"

// TopicFor returns the topic carrying one computation's events
func TopicFor(requestID string) string {
	return EventsTopic + "." + requestID
}

// Event is a progress checkpoint or, with Done set, the end of a computation
type Event struct {
	RequestID string       `json:"requestId"`
	Phase     engine.Phase `json:"phase,omitempty"`
	Step      int          `json:"step,omitempty"`
	Done      bool         `json:"done,omitempty"`
	Outcome   Outcome      `json:"outcome,omitempty"`
	Error     string       `json:"error,omitempty"`
	Time      time.Time    `json:"time"`
}

const tracerName = "github.com/dd0wney/cluso-graphmetrics/pkg/gateway"

type requestIDKey struct{}

// ContextWithRequestID makes Submit use id instead of generating one
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Gateway runs at most one computation at a time
type Gateway struct {
	runner  Runner
	policy  SlotPolicy
	timeout time.Duration
	limits  validation.Limits
	store   *snapshot.Store
	events  *pubsub.Broker[Event]
	metrics *metrics.Registry
	logger  logging.Logger
	tracer  trace.Tracer

	slot chan struct{}

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a gateway dispatching to runner
func New(runner Runner, opts ...Option) *Gateway {
	g := &Gateway{
		runner: runner,
		policy: PolicyQueue,
		limits: validation.DefaultLimits(),
		slot:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.NewNopLogger()
	}
	g.logger = g.logger.With(logging.Component("gateway"), logging.Runner(runner.Name()))
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}
	if g.events == nil {
		g.events = pubsub.NewBroker[Event](0)
	}
	return g
}

// Compute submits req and waits for it to end
func (g *Gateway) Compute(ctx context.Context, req engine.Request) (*engine.Result, error) {
	return g.Submit(ctx, req).Wait()
}

// Submit starts a computation and returns its future at once. Invalid
// requests, busy rejections and calls after Close produce an already
// completed future. The computation stops when ctx ends or the future is
// cancelled.
func (g *Gateway) Submit(ctx context.Context, req engine.Request) *Future {
	id := requestIDFrom(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	f := newFuture(id, cancel)
	logger := g.logger.With(logging.RequestID(id))

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		f.complete(nil, ErrClosed, OutcomeFailed)
		return f
	}

	applyDefaults(&req)
	if err := validation.ValidateComputeRequest(&req, g.limits); err != nil {
		logger.Warn("request rejected", logging.Error(err))
		g.finish(f, nil, err, OutcomeFailed, 0)
		return f
	}

	if g.policy == PolicyReject {
		select {
		case g.slot <- struct{}{}:
		default:
			logger.Info("computation rejected, gateway busy")
			if g.metrics != nil {
				g.metrics.RecordRejected(g.runner.Name())
			}
			f.complete(nil, ErrBusy, OutcomeFailed)
			g.publishEnd(f)
			return f
		}
		g.wg.Add(1)
		go g.run(runCtx, f, req, logger, time.Now(), true)
		return f
	}

	g.wg.Add(1)
	go g.run(runCtx, f, req, logger, time.Now(), false)
	return f
}

// applyDefaults fills fields left at their zero value by programmatic callers
func applyDefaults(req *engine.Request) {
	if req.LouvainResolution == 0 {
		req.LouvainResolution = engine.NewRequest().LouvainResolution
	}
}

func (g *Gateway) run(ctx context.Context, f *Future, req engine.Request, logger logging.Logger, submitted time.Time, holding bool) {
	defer g.wg.Done()

	if !holding {
		select {
		case g.slot <- struct{}{}:
		case <-ctx.Done():
			g.finish(f, nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err()), OutcomeCanceled, 0)
			return
		}
	}
	defer func() { <-g.slot }()

	if g.metrics != nil {
		g.metrics.RecordQueueWait(time.Since(submitted))
		g.metrics.ComputeInFlight.Inc()
		defer g.metrics.ComputeInFlight.Dec()
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, span := g.tracer.Start(ctx, "gateway.Compute", trace.WithAttributes(
		attribute.String("request.id", f.id),
		attribute.String("gateway.runner", g.runner.Name()),
		attribute.Int("graph.nodes", len(req.Nodes)),
		attribute.Int("graph.links", len(req.Links)),
	))
	defer span.End()
	ctx = logging.NewContext(ctx, logger)

	progress := func(p engine.Progress) {
		g.publish(f.id, Event{RequestID: f.id, Phase: p.Phase, Step: p.Step, Time: time.Now()})
	}

	timer := logging.StartTimer(logger, "computation", logging.NodeCount(len(req.Nodes)), logging.EdgeCount(len(req.Links)))
	result, err := g.runner.Run(ctx, f.id, req, progress)
	elapsed := timer.Elapsed()

	switch {
	case err == nil && result == nil:
		err = fmt.Errorf("%w: runner returned no result", ErrExecution)
		fallthrough
	case err != nil:
		outcome := OutcomeFailed
		if isCancellation(ctx, err) {
			outcome = OutcomeCanceled
			err = fmt.Errorf("%w: %w", ErrCanceled, err)
			timer.EndWithLevel(logging.InfoLevel, "computation canceled", logging.Error(err))
		} else {
			if !errors.Is(err, ErrExecution) {
				err = fmt.Errorf("%w: %w", ErrExecution, err)
			}
			timer.EndError(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.String())
		g.finish(f, nil, err, outcome, elapsed)
		return
	}

	if g.store != nil {
		if _, serr := g.store.Save(f.id, result); serr != nil {
			logger.Warn("snapshot not persisted", logging.Error(serr))
		}
	}
	span.SetAttributes(attribute.Float64("louvain.modularity", result.ModularityQ))
	timer.End(logging.Float64("modularity", result.ModularityQ))
	g.finish(f, result, nil, OutcomeSucceeded, elapsed)
}

// isCancellation separates caller-initiated stops from failures
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, transport.ErrRemoteCanceled)
}

func (g *Gateway) finish(f *Future, result *engine.Result, err error, outcome Outcome, elapsed time.Duration) {
	if g.metrics != nil {
		summary := metrics.ComputeSummary{
			Runner:   g.runner.Name(),
			Outcome:  outcome.String(),
			Duration: elapsed,
		}
		if result != nil && result.Stats != nil {
			s := result.Stats
			summary.Nodes = s.Nodes
			summary.Links = s.Links
			summary.DroppedLinks = s.DroppedLinks
			summary.PowerIterations = s.PowerIterations
			summary.LocalMovePasses = s.LocalMovePasses
			summary.Communities = s.Communities
			summary.Modularity = result.ModularityQ
			summary.PhaseMillis = s.PhaseMillis
		}
		g.metrics.RecordCompute(summary)
	}

	f.complete(result, err, outcome)
	g.publishEnd(f)
}

func (g *Gateway) publishEnd(f *Future) {
	_, err := f.Wait()
	ev := Event{RequestID: f.id, Done: true, Outcome: f.Outcome(), Time: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	g.publish(f.id, ev)
}

func (g *Gateway) publish(requestID string, ev Event) {
	g.events.Publish(EventsTopic, ev)
	g.events.Publish(TopicFor(requestID), ev)
}

// Subscribe streams events of one computation, or of all computations when
// requestID is empty. The subscription ends with ctx.
func (g *Gateway) Subscribe(ctx context.Context, requestID string) (*pubsub.Subscription[Event], error) {
	topic := EventsTopic
	if requestID != "" {
		topic = TopicFor(requestID)
	}
	return g.events.Subscribe(ctx, topic)
}

// Latest returns the last successful result
func (g *Gateway) Latest() (*snapshot.Snapshot, bool) {
	if g.store == nil {
		return nil, false
	}
	return g.store.Latest()
}

// Busy reports whether a computation holds the slot
func (g *Gateway) Busy() bool {
	return len(g.slot) > 0
}

// RunnerName returns the runner's label
func (g *Gateway) RunnerName() string {
	return g.runner.Name()
}

// Close refuses new computations and waits for running and queued ones to end
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}
