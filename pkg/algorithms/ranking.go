package algorithms

import "container/heap"

// RankedNode represents a node index with its score
type RankedNode struct {
	Index int
	Score float64
}

// rankedNodeHeap is a min-heap ordered so that the weakest candidate sits at the
// root: lower score first, and among equal scores the later index first.
type rankedNodeHeap []RankedNode

func (h rankedNodeHeap) Len() int { return len(h) }
func (h rankedNodeHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Index > h[j].Index
}
func (h rankedNodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *rankedNodeHeap) Push(x any) {
	*h = append(*h, x.(RankedNode))
}

func (h *rankedNodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// TopRanked returns the n highest scores in descending order. Equal scores keep
// ascending index order, so earlier input nodes win ties.
// Time complexity: O(len(scores) log n)
func TopRanked(scores []float64, n int) []RankedNode {
	if n <= 0 {
		return []RankedNode{}
	}

	h := make(rankedNodeHeap, 0, n)
	for i, score := range scores {
		rn := RankedNode{Index: i, Score: score}
		if h.Len() < n {
			heap.Push(&h, rn)
		} else if score > h[0].Score {
			// Indices only grow, so an equal score never displaces the root
			heap.Pop(&h)
			heap.Push(&h, rn)
		}
	}

	// Pops come out weakest first
	result := make([]RankedNode, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(RankedNode)
	}
	return result
}
