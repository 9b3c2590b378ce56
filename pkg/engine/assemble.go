package engine

import "github.com/dd0wney/cluso-graphmetrics/pkg/algorithms"

// assemble joins index-keyed phase outputs back to node ids
func assemble(
	idx *algorithms.GraphIndex,
	centrality *algorithms.EigenvectorResult,
	community *algorithms.LouvainResult,
	flags map[int]algorithms.EdgeFlag,
	topK int,
) *Result {
	n := idx.NodeCount()
	result := &Result{
		NodeMetrics: make(map[string]NodeMetrics, n),
		Communities: make(map[string]int, n),
		EdgeFlags:   make(map[int]EdgeFlag, len(flags)),
		ModularityQ: community.Modularity,
	}

	for i, id := range idx.IDs {
		d := idx.Degrees[i]
		result.NodeMetrics[id] = NodeMetrics{
			DegreeIn:       d.In,
			DegreeOut:      d.Out,
			DegreeTotal:    d.Total,
			DegreeInW:      d.InWeight,
			DegreeOutW:     d.OutWeight,
			DegreeTotalW:   d.TotalWeight,
			EigenvectorRaw: centrality.Raw[i],
			Eigenvector:    centrality.Normalized[i],
		}
		result.Communities[id] = community.Partition[i]
	}

	for pos, f := range flags {
		result.EdgeFlags[pos] = EdgeFlag{
			IntraCommunity: f.IntraCommunity,
			BridgeEdge:     f.BridgeEdge,
		}
	}

	ranked := algorithms.TopRanked(centrality.Normalized, topK)
	result.TopEigenvector = make([]ScoredNode, len(ranked))
	for i, r := range ranked {
		result.TopEigenvector[i] = ScoredNode{ID: idx.IDs[r.Index], Score: r.Score}
	}

	result.Stats = &Stats{
		Nodes:               n,
		Links:               len(idx.Links) + idx.DroppedLinks,
		DroppedLinks:        idx.DroppedLinks,
		Communities:         len(community.Communities),
		PowerIterations:     centrality.Iterations,
		CentralityConverged: centrality.Converged,
		LocalMovePasses:     community.Passes,
		LocalMoves:          community.Moves,
	}
	return result
}
