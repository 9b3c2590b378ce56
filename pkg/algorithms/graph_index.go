package algorithms

import "math"

// Link is a directed edge between two node identifiers as supplied by the caller.
// A nil Weight means the edge carries no explicit weight.
type Link struct {
	Source string
	Target string
	Weight *float64
}

// DegreeCounters holds the six degree statistics of a single node
type DegreeCounters struct {
	In          int
	Out         int
	Total       int
	InWeight    float64
	OutWeight   float64
	TotalWeight float64
}

// Neighbor is one entry of a node's undirected neighbor list
type Neighbor struct {
	Index  int
	Weight float64
}

// WeightedPair is a folded undirected edge. A <= B always holds; A == B marks a self pair.
type WeightedPair struct {
	A, B     int
	Weight   float64
	SelfLoop bool
}

// Adjacency is the undirected, weight-aggregated view of the graph used by the
// centrality and community phases.
type Adjacency struct {
	N         int
	Neighbors [][]Neighbor
	// Pairs lists every folded pair in first-seen order, self pairs included
	Pairs []WeightedPair
	// TotalWeight is the summed weight of non-self pairs, never <= 0
	TotalWeight float64
	// FoldedWeight is the summed weight of every pair, self pairs included
	FoldedWeight float64
}

// ResolvedLink is an input link whose endpoints were both found in the node set
type ResolvedLink struct {
	Position int // position in the caller's link slice
	Source   int
	Target   int
	Weight   float64
}

// GraphIndex is the dense, call-local representation of one request's graph
type GraphIndex struct {
	IDs          []string
	IndexOf      map[string]int
	Degrees      []DegreeCounters
	Links        []ResolvedLink
	Adjacency    *Adjacency
	DroppedLinks int
}

// EffectiveWeight applies the weight policy: the explicit weight when weights are
// enabled and the value is finite, otherwise 1.
func EffectiveWeight(w *float64, useWeights bool) float64 {
	if !useWeights || w == nil {
		return 1
	}
	if math.IsNaN(*w) || math.IsInf(*w, 0) {
		return 1
	}
	return *w
}

// BuildIndex maps node identifiers to dense indices, resolves links against them
// and derives the degree table and folded undirected adjacency.
// Duplicate identifiers keep their first position. Links with an unknown endpoint
// are dropped and counted in DroppedLinks.
func BuildIndex(nodeIDs []string, links []Link, useWeights bool) *GraphIndex {
	idx := &GraphIndex{
		IDs:     make([]string, 0, len(nodeIDs)),
		IndexOf: make(map[string]int, len(nodeIDs)),
		Links:   make([]ResolvedLink, 0, len(links)),
	}

	for _, id := range nodeIDs {
		if _, seen := idx.IndexOf[id]; seen {
			continue
		}
		idx.IndexOf[id] = len(idx.IDs)
		idx.IDs = append(idx.IDs, id)
	}

	n := len(idx.IDs)
	idx.Degrees = make([]DegreeCounters, n)

	type pairKey struct{ a, b int }
	pairPos := make(map[pairKey]int)
	var pairs []WeightedPair

	for pos, l := range links {
		s, okS := idx.IndexOf[l.Source]
		t, okT := idx.IndexOf[l.Target]
		if !okS || !okT {
			idx.DroppedLinks++
			continue
		}

		w := EffectiveWeight(l.Weight, useWeights)
		idx.Links = append(idx.Links, ResolvedLink{Position: pos, Source: s, Target: t, Weight: w})

		ds := &idx.Degrees[s]
		ds.Out++
		ds.Total++
		ds.OutWeight += w
		ds.TotalWeight += w

		dt := &idx.Degrees[t]
		dt.In++
		dt.Total++
		dt.InWeight += w
		dt.TotalWeight += w

		a, b := s, t
		if a > b {
			a, b = b, a
		}
		key := pairKey{a, b}
		if p, ok := pairPos[key]; ok {
			pairs[p].Weight += w
			continue
		}
		pairPos[key] = len(pairs)
		pairs = append(pairs, WeightedPair{A: a, B: b, Weight: w, SelfLoop: a == b})
	}

	idx.Adjacency = foldAdjacency(n, pairs)
	return idx
}

// foldAdjacency builds neighbor lists from folded pairs. Self pairs stay in Pairs
// but never appear as neighbors.
func foldAdjacency(n int, pairs []WeightedPair) *Adjacency {
	adj := &Adjacency{
		N:         n,
		Neighbors: make([][]Neighbor, n),
		Pairs:     pairs,
	}

	for _, p := range pairs {
		adj.FoldedWeight += p.Weight
		if p.SelfLoop {
			continue
		}
		adj.TotalWeight += p.Weight
		adj.Neighbors[p.A] = append(adj.Neighbors[p.A], Neighbor{Index: p.B, Weight: p.Weight})
		adj.Neighbors[p.B] = append(adj.Neighbors[p.B], Neighbor{Index: p.A, Weight: p.Weight})
	}

	if adj.TotalWeight <= 0 {
		adj.TotalWeight = 1
	}
	return adj
}

// WeightedDegree returns the sum of neighbor weights of node u
func (a *Adjacency) WeightedDegree(u int) float64 {
	k := 0.0
	for _, nb := range a.Neighbors[u] {
		k += nb.Weight
	}
	return k
}

// NodeCount returns the number of distinct nodes in the index
func (g *GraphIndex) NodeCount() int {
	return len(g.IDs)
}
