package algorithms

// LouvainOptions configures community detection
type LouvainOptions struct {
	// Resolution scales the expected-weight penalty; higher values favor
	// more, smaller communities
	Resolution float64
	// MaxPasses caps the local-move passes
	MaxPasses int

	// Progress, when set, is called after every pass with the number of
	// nodes that moved during it
	Progress func(pass, moved int)
}

// DefaultLouvainOptions returns default community detection configuration
func DefaultLouvainOptions() LouvainOptions {
	return LouvainOptions{
		Resolution: 1.0,
		MaxPasses:  1000,
	}
}

// Community is one group of the partition. ID is the index of the node that
// seeded it, so IDs are not dense.
type Community struct {
	ID             int
	Nodes          []int   // Dense node indices, ascending
	Size           int
	InternalWeight float64 // Folded weight of non-self pairs inside the community
}

// LouvainResult contains the partition found by the local-move phase
type LouvainResult struct {
	Partition   []int // Node index -> community ID
	Modularity  float64
	Communities []*Community // Sorted by ID
	Passes      int
	Moves       int  // Node moves summed over all passes
	Converged   bool // False when MaxPasses stopped the loop
}

// EdgeFlag classifies one link under a partition. Exactly one field is set.
type EdgeFlag struct {
	IntraCommunity bool
	BridgeEdge     bool
}
