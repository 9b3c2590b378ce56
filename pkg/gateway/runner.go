package gateway

import (
	"context"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/parallel"
	"github.com/dd0wney/cluso-graphmetrics/pkg/transport"
)

// Runner executes one computation on some substrate
type Runner interface {
	Run(ctx context.Context, requestID string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error)
	// Name labels the runner in logs and metrics
	Name() string
}

// InProcessRunner calls the engine on the caller's goroutine
type InProcessRunner struct {
	Options []engine.Option
}

// NewInProcessRunner creates a runner that applies opts to every computation
func NewInProcessRunner(opts ...engine.Option) *InProcessRunner {
	return &InProcessRunner{Options: opts}
}

// Name implements Runner
func (r *InProcessRunner) Name() string { return "inprocess" }

// Run implements Runner
func (r *InProcessRunner) Run(ctx context.Context, _ string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error) {
	return engine.Compute(ctx, req, withProgress(r.Options, progress)...)
}

// PoolRunner runs computations on dedicated worker goroutines. A panic in the
// engine is contained by the pool and reported as an execution failure.
type PoolRunner struct {
	pool    *parallel.WorkerPool
	options []engine.Option
}

// NewPoolRunner creates a runner on top of pool
func NewPoolRunner(pool *parallel.WorkerPool, opts ...engine.Option) *PoolRunner {
	return &PoolRunner{pool: pool, options: opts}
}

// Name implements Runner
func (r *PoolRunner) Name() string { return "pool" }

// Run implements Runner
func (r *PoolRunner) Run(ctx context.Context, _ string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error) {
	var result *engine.Result
	err := r.pool.Do(ctx, func(ctx context.Context) error {
		res, err := engine.Compute(ctx, req, withProgress(r.options, progress)...)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoteRunner forwards computations to a worker over a transport
type RemoteRunner struct {
	client transport.Client
}

// NewRemoteRunner creates a runner backed by client
func NewRemoteRunner(client transport.Client) *RemoteRunner {
	return &RemoteRunner{client: client}
}

// Name implements Runner
func (r *RemoteRunner) Name() string { return "remote-" + r.client.Name() }

// Run implements Runner
func (r *RemoteRunner) Run(ctx context.Context, requestID string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error) {
	return r.client.Compute(ctx, requestID, req, progress)
}

func withProgress(opts []engine.Option, progress engine.ProgressFunc) []engine.Option {
	if progress == nil {
		return opts
	}
	out := make([]engine.Option, 0, len(opts)+1)
	out = append(out, opts...)
	return append(out, engine.WithProgress(progress))
}
