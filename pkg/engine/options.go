package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dd0wney/cluso-graphmetrics/pkg/algorithms"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// DefaultTopK is the number of nodes reported in the centrality ranking
const DefaultTopK = 5

const tracerName = "github.com/dd0wney/cluso-graphmetrics/pkg/engine"

// Options tunes a computation. Request fields (weights, resolution) are not
// options; they travel with the request.
type Options struct {
	Eigenvector algorithms.EigenvectorOptions
	MaxPasses   int
	TopK        int
	Progress    ProgressFunc
	Tracer      trace.Tracer
	Logger      logging.Logger
}

// Option mutates Options
type Option func(*Options)

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		Eigenvector: algorithms.DefaultEigenvectorOptions(),
		MaxPasses:   algorithms.DefaultLouvainOptions().MaxPasses,
		TopK:        DefaultTopK,
	}
}

// WithEigenvector overrides the power iteration bounds
func WithEigenvector(maxIterations int, tolerance float64) Option {
	return func(o *Options) {
		o.Eigenvector.MaxIterations = maxIterations
		o.Eigenvector.Tolerance = tolerance
	}
}

// WithMaxPasses bounds the local-move phase
func WithMaxPasses(n int) Option {
	return func(o *Options) { o.MaxPasses = n }
}

// WithTopK sets the ranking length
func WithTopK(k int) Option {
	return func(o *Options) { o.TopK = k }
}

// WithProgress registers a checkpoint callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) { o.Progress = fn }
}

// WithTracer sets the tracer used for phase spans
func WithTracer(t trace.Tracer) Option {
	return func(o *Options) { o.Tracer = t }
}

// WithLogger sets the logger; otherwise the context logger is used
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	if o.TopK < 0 {
		o.TopK = 0
	}
	return o
}
