package algorithms

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomGraph assembles an index from generated endpoints. Endpoints at or past
// nodeCount are unknown ids and exercise the drop path.
func randomGraph(nodeCount int, srcs, dsts, weights []int) *GraphIndex {
	nodes := make([]string, nodeCount)
	for i := range nodes {
		nodes[i] = "n" + strconv.Itoa(i)
	}

	m := len(srcs)
	if len(dsts) < m {
		m = len(dsts)
	}
	links := make([]Link, 0, m)
	for i := 0; i < m; i++ {
		l := Link{Source: "n" + strconv.Itoa(srcs[i]), Target: "n" + strconv.Itoa(dsts[i])}
		if i < len(weights) {
			w := float64(weights[i])
			l.Weight = &w
		}
		links = append(links, l)
	}
	return BuildIndex(nodes, links, true)
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// TestMetricInvariants uses property-based testing to verify the engine invariants
// These properties should hold for any graph
func TestMetricInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	nodeCount := gen.IntRange(1, 12)
	endpoints := gen.SliceOf(gen.IntRange(0, 13))
	weights := gen.SliceOf(gen.IntRange(1, 5))

	// Property 1: directed degree sums agree with each other and the folded adjacency
	properties.Property("degree sums match folded weight", prop.ForAll(
		func(n int, srcs, dsts, ws []int) bool {
			idx := randomGraph(n, srcs, dsts, ws)

			in, out := 0, 0
			inW, outW := 0.0, 0.0
			for _, d := range idx.Degrees {
				in += d.In
				out += d.Out
				inW += d.InWeight
				outW += d.OutWeight
				if d.Total != d.In+d.Out {
					return false
				}
			}
			return in == out && in == len(idx.Links) &&
				approxEqual(inW, outW) && approxEqual(outW, idx.Adjacency.FoldedWeight)
		},
		nodeCount, endpoints, endpoints, weights,
	))

	// Property 2: normalized centrality stays inside [0, 1]
	properties.Property("normalized centrality bounded", prop.ForAll(
		func(n int, srcs, dsts, ws []int) bool {
			idx := randomGraph(n, srcs, dsts, ws)
			result, err := EigenvectorCentrality(context.Background(), idx.Adjacency, DefaultEigenvectorOptions())
			if err != nil {
				return false
			}
			for i, v := range result.Normalized {
				if v < 0 || v > 1 || result.Raw[i] < 0 {
					return false
				}
			}
			return len(result.Normalized) == idx.NodeCount()
		},
		nodeCount, endpoints, endpoints, weights,
	))

	// Property 3: every node belongs to exactly one in-range community and Q re-scores identically
	properties.Property("partition total and modularity round trip", prop.ForAll(
		func(n int, srcs, dsts, ws []int) bool {
			idx := randomGraph(n, srcs, dsts, ws)
			opts := DefaultLouvainOptions()
			result, err := Louvain(context.Background(), idx.Adjacency, opts)
			if err != nil || len(result.Partition) != idx.NodeCount() {
				return false
			}
			members := 0
			for _, c := range result.Communities {
				members += c.Size
			}
			for _, c := range result.Partition {
				if c < 0 || c >= idx.NodeCount() {
					return false
				}
			}
			return members == idx.NodeCount() &&
				Modularity(idx.Adjacency, result.Partition, opts.Resolution) == result.Modularity
		},
		nodeCount, endpoints, endpoints, weights,
	))

	// Property 4: each resolved link gets exactly one of the two flags
	properties.Property("edge flags complementary", prop.ForAll(
		func(n int, srcs, dsts, ws []int) bool {
			idx := randomGraph(n, srcs, dsts, ws)
			result, err := Louvain(context.Background(), idx.Adjacency, DefaultLouvainOptions())
			if err != nil {
				return false
			}
			flags := ClassifyEdges(idx, result.Partition)
			if len(flags) != len(idx.Links) {
				return false
			}
			for _, f := range flags {
				if f.IntraCommunity == f.BridgeEdge {
					return false
				}
			}
			return true
		},
		nodeCount, endpoints, endpoints, weights,
	))

	// Property 5: a converged partition is a fixed point of the local-move phase
	properties.Property("local move idempotent", prop.ForAll(
		func(n int, srcs, dsts, ws []int) bool {
			idx := randomGraph(n, srcs, dsts, ws)
			first, err := Louvain(context.Background(), idx.Adjacency, DefaultLouvainOptions())
			if err != nil {
				return false
			}
			if !first.Converged {
				return true
			}
			again := append([]int(nil), first.Partition...)
			second, err := LocalMove(context.Background(), idx.Adjacency, again, DefaultLouvainOptions())
			return err == nil && second.Moves == 0
		},
		nodeCount, endpoints, endpoints, weights,
	))

	properties.TestingRun(t)
}
