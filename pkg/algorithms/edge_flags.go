package algorithms

// ClassifyEdges flags every resolved link as intra-community or bridge under the
// given partition. Keys are positions in the caller's original link slice;
// links dropped during indexing get no entry.
func ClassifyEdges(idx *GraphIndex, partition []int) map[int]EdgeFlag {
	flags := make(map[int]EdgeFlag, len(idx.Links))
	for _, l := range idx.Links {
		intra := partition[l.Source] == partition[l.Target]
		flags[l.Position] = EdgeFlag{
			IntraCommunity: intra,
			BridgeEdge:     !intra,
		}
	}
	return flags
}
