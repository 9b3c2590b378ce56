package graphql

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/snapshot"
)

// requestFromInput converts the ComputeInput argument. Omitted optional
// fields keep the wire defaults.
func requestFromInput(input map[string]any) (engine.Request, error) {
	req := engine.NewRequest()

	nodes, _ := input["nodes"].([]any)
	req.Nodes = make([]engine.Node, 0, len(nodes))
	for _, raw := range nodes {
		n, ok := raw.(map[string]any)
		if !ok {
			return req, fmt.Errorf("node: unexpected value %T", raw)
		}
		id, _ := n["id"].(string)
		req.Nodes = append(req.Nodes, engine.Node{ID: id})
	}

	links, _ := input["links"].([]any)
	req.Links = make([]engine.Link, 0, len(links))
	for _, raw := range links {
		l, ok := raw.(map[string]any)
		if !ok {
			return req, fmt.Errorf("link: unexpected value %T", raw)
		}
		link := engine.Link{}
		link.Source, _ = l["source"].(string)
		link.Target, _ = l["target"].(string)
		if w, ok := toFloat(l["weight"]); ok {
			link.Weight = &w
		}
		req.Links = append(req.Links, link)
	}

	if v, ok := input["useWeights"].(bool); ok {
		req.UseWeights = v
	}
	if v, ok := toFloat(input["louvainResolution"]); ok {
		req.LouvainResolution = v
	}
	return req, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// resultView flattens the id- and index-keyed maps into lists ordered by key
func resultView(r *engine.Result) map[string]any {
	if r == nil {
		return nil
	}

	ids := make([]string, 0, len(r.NodeMetrics))
	for id := range r.NodeMetrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodeMetrics := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		m := r.NodeMetrics[id]
		nodeMetrics = append(nodeMetrics, map[string]any{
			"id":             id,
			"degreeIn":       m.DegreeIn,
			"degreeOut":      m.DegreeOut,
			"degreeTotal":    m.DegreeTotal,
			"degreeInW":      m.DegreeInW,
			"degreeOutW":     m.DegreeOutW,
			"degreeTotalW":   m.DegreeTotalW,
			"eigenvectorRaw": m.EigenvectorRaw,
			"eigenvector":    m.Eigenvector,
		})
	}

	memberIDs := make([]string, 0, len(r.Communities))
	for id := range r.Communities {
		memberIDs = append(memberIDs, id)
	}
	sort.Strings(memberIDs)
	communities := make([]map[string]any, 0, len(memberIDs))
	for _, id := range memberIDs {
		communities = append(communities, map[string]any{"id": id, "community": r.Communities[id]})
	}

	indexes := make([]int, 0, len(r.EdgeFlags))
	for i := range r.EdgeFlags {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	edgeFlags := make([]map[string]any, 0, len(indexes))
	for _, i := range indexes {
		f := r.EdgeFlags[i]
		edgeFlags = append(edgeFlags, map[string]any{
			"index":          i,
			"intraCommunity": f.IntraCommunity,
			"bridgeEdge":     f.BridgeEdge,
		})
	}

	top := make([]map[string]any, 0, len(r.TopEigenvector))
	for _, s := range r.TopEigenvector {
		top = append(top, map[string]any{"id": s.ID, "score": s.Score})
	}

	view := map[string]any{
		"nodeMetrics":    nodeMetrics,
		"communities":    communities,
		"edgeFlags":      edgeFlags,
		"modularityQ":    r.ModularityQ,
		"topEigenvector": top,
	}
	if s := r.Stats; s != nil {
		view["stats"] = map[string]any{
			"nodes":               s.Nodes,
			"links":               s.Links,
			"droppedLinks":        s.DroppedLinks,
			"communities":         s.Communities,
			"powerIterations":     s.PowerIterations,
			"centralityConverged": s.CentralityConverged,
			"localMovePasses":     s.LocalMovePasses,
			"localMoves":          s.LocalMoves,
		}
	}
	return view
}

func snapshotView(s *snapshot.Snapshot) map[string]any {
	return map[string]any{
		"seq":         int(s.Seq),
		"requestId":   s.RequestID,
		"completedAt": s.CompletedAt,
		"result":      resultView(s.Result),
	}
}
