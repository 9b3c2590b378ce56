// Package engine computes degree statistics, eigenvector centrality, a
// single-level Louvain partition with its modularity and per-edge community
// flags for one graph. Every call is independent and keeps no state.
package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-graphmetrics/pkg/algorithms"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// Compute runs the full pipeline. On error (only context cancellation or
// deadline) no partial result is returned.
func Compute(ctx context.Context, req Request, opts ...Option) (result *Result, err error) {
	o := buildOptions(opts)
	logger := o.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger = logger.With(logging.Component("engine"))

	ctx, span := o.Tracer.Start(ctx, "engine.Compute", trace.WithAttributes(
		attribute.Int("graph.nodes", len(req.Nodes)),
		attribute.Int("graph.links", len(req.Links)),
		attribute.Bool("graph.use_weights", req.UseWeights),
		attribute.Float64("louvain.resolution", req.LouvainResolution),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p := newPipeline(o)

	// Graph Index
	p.enter(PhaseBuildingAdjacency)
	idx := algorithms.BuildIndex(req.NodeIDs(), req.algorithmLinks(), req.UseWeights)
	p.leave(PhaseBuildingAdjacency)
	if idx.DroppedLinks > 0 {
		logger.Debug("dropped links with unknown endpoints", logging.Count(idx.DroppedLinks))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Centrality and community detection only read the adjacency
	var (
		centrality *algorithms.EigenvectorResult
		community  *algorithms.LouvainResult
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, phaseSpan := o.Tracer.Start(gctx, string(PhasePowerIteration))
		defer phaseSpan.End()

		p.enter(PhasePowerIteration)
		eo := o.Eigenvector
		eo.Progress = func(iteration int) { p.step(PhasePowerIteration, iteration) }
		res, err := algorithms.EigenvectorCentrality(gctx, idx.Adjacency, eo)
		if err != nil {
			return err
		}
		p.leave(PhasePowerIteration)
		phaseSpan.SetAttributes(
			attribute.Int("eigenvector.iterations", res.Iterations),
			attribute.Bool("eigenvector.converged", res.Converged),
		)
		centrality = res
		return nil
	})

	g.Go(func() error {
		_, phaseSpan := o.Tracer.Start(gctx, string(PhaseLocalMoves))
		defer phaseSpan.End()

		p.enter(PhaseLocalMoves)
		lo := algorithms.LouvainOptions{
			Resolution: req.LouvainResolution,
			MaxPasses:  o.MaxPasses,
			Progress:   func(pass, _ int) { p.step(PhaseLocalMoves, pass) },
		}
		res, err := algorithms.Louvain(gctx, idx.Adjacency, lo)
		if err != nil {
			return err
		}
		p.leave(PhaseLocalMoves)
		phaseSpan.SetAttributes(
			attribute.Int("louvain.passes", res.Passes),
			attribute.Int("louvain.communities", len(res.Communities)),
			attribute.Float64("louvain.modularity", res.Modularity),
		)
		community = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !community.Converged {
		logger.Warn("local-move phase hit the pass limit", logging.Int("passes", community.Passes))
	}

	// Edge Classifier
	p.enter(PhaseFinalizing)
	flags := algorithms.ClassifyEdges(idx, community.Partition)
	p.leave(PhaseFinalizing)

	// Result Assembler
	p.enter(PhaseAssembling)
	result = assemble(idx, centrality, community, flags, o.TopK)
	p.leave(PhaseAssembling)

	result.Stats.PhaseMillis = p.millis()
	span.SetAttributes(attribute.Float64("louvain.modularity", result.ModularityQ))
	return result, nil
}

// pipeline serializes progress callbacks and records phase durations
type pipeline struct {
	mu       sync.Mutex
	progress ProgressFunc
	started  map[Phase]time.Time
	elapsed  map[Phase]time.Duration
}

func newPipeline(o Options) *pipeline {
	return &pipeline{
		progress: o.Progress,
		started:  make(map[Phase]time.Time),
		elapsed:  make(map[Phase]time.Duration),
	}
}

func (p *pipeline) enter(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started[phase] = time.Now()
	if p.progress != nil {
		p.progress(Progress{Phase: phase})
	}
}

func (p *pipeline) step(phase Phase, n int) {
	if p.progress == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress(Progress{Phase: phase, Step: n})
}

func (p *pipeline) leave(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elapsed[phase] = time.Since(p.started[phase])
}

func (p *pipeline) millis() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]float64, len(p.elapsed))
	for phase, d := range p.elapsed {
		out[string(phase)] = float64(d) / float64(time.Millisecond)
	}
	return out
}
