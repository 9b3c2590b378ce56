package algorithms

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidPartition is returned when a starting partition does not cover the
// graph or names a community outside the node index range.
var ErrInvalidPartition = errors.New("invalid partition")

// Louvain runs the local-move phase of the Louvain method once, starting from
// singleton communities, and scores the resulting partition. It does not
// aggregate communities into super-nodes.
func Louvain(ctx context.Context, adj *Adjacency, opts LouvainOptions) (*LouvainResult, error) {
	partition := make([]int, adj.N)
	for i := range partition {
		partition[i] = i
	}
	return LocalMove(ctx, adj, partition, opts)
}

// LocalMove repeats passes over all nodes in index order, moving each node into
// the neighboring community with the largest modularity gain, until a pass moves
// nothing. The partition slice is updated in place and returned in the result.
//
// For a candidate community c the gain is
//
//	w(u->c)/m2 - gamma * k_u * sum(k_i, i in c) / m2^2
//
// A node moves only when the best candidate is positive and beats the same
// expression evaluated for its current community without it. Ties keep the
// first community encountered while walking the node's neighbor list.
func LocalMove(ctx context.Context, adj *Adjacency, partition []int, opts LouvainOptions) (*LouvainResult, error) {
	n := adj.N
	if len(partition) != n {
		return nil, fmt.Errorf("%w: %d entries for %d nodes", ErrInvalidPartition, len(partition), n)
	}
	for u, c := range partition {
		if c < 0 || c >= n {
			return nil, fmt.Errorf("%w: node %d assigned to community %d", ErrInvalidPartition, u, c)
		}
	}
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultLouvainOptions().Resolution
	}
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultLouvainOptions().MaxPasses
	}

	m2 := 2 * adj.TotalWeight
	m2sq := m2 * m2
	gamma := opts.Resolution

	k := make([]float64, n)
	for u := 0; u < n; u++ {
		k[u] = adj.WeightedDegree(u)
	}

	// Community accumulators, indexed by community ID
	commDegree := make([]float64, n)
	commSize := make([]int, n)
	for u, c := range partition {
		commDegree[c] += k[u]
		commSize[c]++
	}

	// Scratch space for neighbor community weights
	neighWeight := make([]float64, n)
	seen := make([]bool, n)
	order := make([]int, 0, 16)

	result := &LouvainResult{Partition: partition}

	for result.Passes < opts.MaxPasses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		moved := 0
		for u := 0; u < n; u++ {
			cu := partition[u]
			ku := k[u]

			ownWeight := 0.0
			order = order[:0]
			for _, nb := range adj.Neighbors[u] {
				c := partition[nb.Index]
				if c == cu {
					ownWeight += nb.Weight
					continue
				}
				if !seen[c] {
					seen[c] = true
					order = append(order, c)
				}
				neighWeight[c] += nb.Weight
			}

			threshold := 0.0
			if commSize[cu] > 1 {
				stay := ownWeight/m2 - gamma*ku*(commDegree[cu]-ku)/m2sq
				if stay > threshold {
					threshold = stay
				}
			}

			best := -1
			bestGain := threshold
			for _, c := range order {
				gain := neighWeight[c]/m2 - gamma*ku*commDegree[c]/m2sq
				if gain > bestGain {
					best = c
					bestGain = gain
				}
				neighWeight[c] = 0
				seen[c] = false
			}

			if best < 0 {
				continue
			}

			commDegree[cu] -= ku
			commSize[cu]--
			commDegree[best] += ku
			commSize[best]++
			partition[u] = best
			moved++
		}

		result.Passes++
		result.Moves += moved
		if opts.Progress != nil {
			opts.Progress(result.Passes, moved)
		}

		if moved == 0 {
			result.Converged = true
			break
		}
	}

	result.Modularity = modularityWithDegrees(adj, partition, k, gamma)
	result.Communities = groupCommunities(adj, partition)
	return result, nil
}

// groupCommunities collects the members of every non-empty community
func groupCommunities(adj *Adjacency, partition []int) []*Community {
	byID := make(map[int]*Community)
	for u, c := range partition {
		comm, ok := byID[c]
		if !ok {
			comm = &Community{ID: c}
			byID[c] = comm
		}
		comm.Nodes = append(comm.Nodes, u)
		comm.Size++
	}

	for _, p := range adj.Pairs {
		if p.SelfLoop {
			continue
		}
		if partition[p.A] == partition[p.B] {
			byID[partition[p.A]].InternalWeight += p.Weight
		}
	}

	communities := make([]*Community, 0, len(byID))
	for _, comm := range byID {
		communities = append(communities, comm)
	}
	sort.Slice(communities, func(i, j int) bool {
		return communities[i].ID < communities[j].ID
	})
	return communities
}
