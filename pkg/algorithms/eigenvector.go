package algorithms

import (
	"context"
	"math"
)

// EigenvectorOptions configures the power iteration
type EigenvectorOptions struct {
	MaxIterations int
	Tolerance     float64 // L1 distance between successive vectors

	// Progress, when set, is called after every completed iteration
	Progress func(iteration int)
}

// DefaultEigenvectorOptions returns default eigenvector centrality configuration
func DefaultEigenvectorOptions() EigenvectorOptions {
	return EigenvectorOptions{
		MaxIterations: 200,
		Tolerance:     1e-6,
	}
}

// EigenvectorResult contains centrality scores indexed by dense node index
type EigenvectorResult struct {
	Raw        []float64 // L2-normalized principal eigenvector estimate
	Normalized []float64 // Min-max scaled into [0, 1]
	Iterations int
	Converged  bool
}

// EigenvectorCentrality estimates eigenvector centrality over the undirected
// adjacency by power iteration: each step replaces every score with the
// weighted sum of its neighbors' scores, then L2-normalizes. Nodes without
// neighbors score 0. On bipartite graphs the vector alternates between two
// states and the loop runs to MaxIterations, returning whichever state it
// stopped on. The only error returned is the context's, when it is cancelled
// between iterations.
func EigenvectorCentrality(ctx context.Context, adj *Adjacency, opts EigenvectorOptions) (*EigenvectorResult, error) {
	n := adj.N
	if n == 0 {
		return &EigenvectorResult{
			Raw:        []float64{},
			Normalized: []float64{},
			Converged:  true,
		}, nil
	}

	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultEigenvectorOptions().MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultEigenvectorOptions().Tolerance
	}

	scores := make([]float64, n)
	initial := 1.0 / float64(n)
	for i := range scores {
		scores[i] = initial
	}
	next := make([]float64, n)

	iterations := 0
	converged := false

	for iterations < opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for u := 0; u < n; u++ {
			sum := 0.0
			for _, nb := range adj.Neighbors[u] {
				sum += nb.Weight * scores[nb.Index]
			}
			next[u] = sum
		}

		norm := 0.0
		for _, v := range next {
			norm += v * v
		}
		norm = math.Sqrt(norm)

		if norm == 0 {
			// No edges at all: every node is isolated and scores 0
			copy(scores, next)
			iterations++
			converged = true
			break
		}
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			break
		}

		delta := 0.0
		for i := range next {
			next[i] /= norm
			delta += math.Abs(next[i] - scores[i])
		}

		scores, next = next, scores
		iterations++

		if opts.Progress != nil {
			opts.Progress(iterations)
		}

		if delta < opts.Tolerance {
			converged = true
			break
		}
	}

	return &EigenvectorResult{
		Raw:        scores,
		Normalized: MinMaxNormalize(scores),
		Iterations: iterations,
		Converged:  converged,
	}, nil
}

// MinMaxNormalize rescales values into [0, 1]. When every value is equal the
// result is all zeros.
func MinMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / span
	}
	return out
}
