package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
)

// Client sends computations to a remote worker. Progress may be nil; not
// every transport can deliver checkpoints.
type Client interface {
	io.Closer
	Compute(ctx context.Context, requestID string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error)
	// Name identifies the transport in logs and metrics
	Name() string
}

// Handler performs a computation on the worker side
type Handler func(ctx context.Context, requestID string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error)

// EngineHandler runs requests directly on the engine
func EngineHandler(opts ...engine.Option) Handler {
	return func(ctx context.Context, _ string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error) {
		o := append([]engine.Option{}, opts...)
		if progress != nil {
			o = append(o, engine.WithProgress(progress))
		}
		return engine.Compute(ctx, req, o...)
	}
}

// Options shared by clients and servers
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Registry
	// TLS configures https for the HTTP client; nil uses the system roots
	TLS *tls.Config
}

func (o Options) logger(name string) logging.Logger {
	l := o.Logger
	if l == nil {
		l = logging.NewNopLogger()
	}
	return l.With(logging.Component("transport"), logging.Transport(name))
}

// observer records transport metrics when a registry is configured
type observer struct {
	name    string
	metrics *metrics.Registry
}

func (o observer) sent(t MessageType, size int) {
	if o.metrics != nil {
		o.metrics.RecordTransportMessage(o.name, string(t), "out", size)
	}
}

func (o observer) received(t MessageType, size int) {
	if o.metrics != nil {
		o.metrics.RecordTransportMessage(o.name, string(t), "in", size)
	}
}

func (o observer) failed(stage string) {
	if o.metrics != nil {
		o.metrics.RecordTransportError(o.name, stage)
	}
}

// inflight tracks running computations on a worker so cancel_metrics can
// reach them
type inflight struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newInflight() *inflight {
	return &inflight{cancels: make(map[string]context.CancelFunc)}
}

func (f *inflight) start(parent context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	f.mu.Lock()
	f.cancels[id] = cancel
	f.mu.Unlock()
	return ctx, func() {
		f.mu.Lock()
		delete(f.cancels, id)
		f.mu.Unlock()
		cancel()
	}
}

// cancel aborts the computation with the given id and reports whether one
// was running
func (f *inflight) cancel(id string) bool {
	f.mu.Lock()
	cancel, ok := f.cancels[id]
	f.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// serve runs one compute_metrics request through handler and returns the
// final reply
func serve(ctx context.Context, handler Handler, env *Envelope, progress engine.ProgressFunc, logger logging.Logger) *Envelope {
	req, err := env.DecodeRequest()
	if err != nil {
		return errorEnvelope(env.ID, err, false)
	}

	timer := logging.StartTimer(logger, "remote computation", logging.RequestID(env.ID), logging.NodeCount(len(req.Nodes)), logging.EdgeCount(len(req.Links)))
	result, err := handler(ctx, env.ID, req, progress)
	if err != nil {
		timer.EndError(err)
		canceled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		return errorEnvelope(env.ID, err, canceled)
	}
	timer.End()

	reply, err := NewEnvelope(MsgMetricsDone, env.ID, result)
	if err != nil {
		return errorEnvelope(env.ID, err, false)
	}
	return reply
}

// decodeResult interprets a final reply
func decodeResult(env *Envelope, requestID string) (*engine.Result, error) {
	if env.ID != requestID {
		return nil, fmt.Errorf("%w: reply for %q, want %q", ErrUnexpectedMessage, env.ID, requestID)
	}
	switch env.Type {
	case MsgMetricsDone:
		var result engine.Result
		if err := env.Decode(&result); err != nil {
			return nil, err
		}
		return &result, nil
	case MsgMetricsError:
		return nil, env.Err()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, env.Type)
	}
}
