package algorithms

// Modularity scores a partition at resolution gamma by summing, over every
// folded non-self pair whose endpoints share a community,
//
//	w/m2 - gamma * k_a * k_b / m2^2
//
// where k is the weighted degree and m2 twice the total folded weight.
func Modularity(adj *Adjacency, partition []int, gamma float64) float64 {
	k := make([]float64, adj.N)
	for u := range k {
		k[u] = adj.WeightedDegree(u)
	}
	return modularityWithDegrees(adj, partition, k, gamma)
}

func modularityWithDegrees(adj *Adjacency, partition []int, k []float64, gamma float64) float64 {
	m2 := 2 * adj.TotalWeight
	m2sq := m2 * m2

	q := 0.0
	for _, p := range adj.Pairs {
		if p.SelfLoop || partition[p.A] != partition[p.B] {
			continue
		}
		q += p.Weight/m2 - gamma*k[p.A]*k[p.B]/m2sq
	}
	return q
}
