// Package tdcontract is the non-core sibling spec.md explicitly allows
// outside the time-dependent core: a topology-based core contraction that
// derives a CCH elimination order, and a static Dijkstra used as the
// ground-truth oracle in correctness tests. Neither module touches a
// time-dependent travel-time function — both work over a scalar lower-bound
// projection of the road network, exactly the way a real deployment would
// run contraction once against free-flow weights before customizing a CCH
// against many time-dependent profiles.
package tdcontract

// Graph is a directed scalar-weighted graph in CSR form: the proxy a
// deployment contracts once to obtain a node order, independent of
// pkg/tdgraph's richer per-arc profile representation.
type Graph struct {
	NumNodes uint32
	FirstOut []uint32 // len NumNodes+1
	Head     []uint32 // len NumEdges
	Weight   []uint32 // len NumEdges; a scalar lower bound (e.g. free-flow time)
}

// EdgesFrom returns the edge index range for edges leaving node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// NumEdges reports the edge count.
func (g *Graph) NumEdges() uint32 {
	return uint32(len(g.Head))
}

// Permute relabels every node by rank (Permute(g, rank).node i == the node
// g called rank[i]), the same renumbering step the teacher's buildOverlay
// folds into CH overlay construction but pulled out here as its own
// operation, since BuildTopology needs node id == rank directly baked into
// its input edge list (pkg/cch/topology.go's doc comment).
func Permute(g *Graph, rank []uint32) *Graph {
	n := g.NumNodes
	newHead := make([]uint32, len(g.Head))
	newWeight := make([]uint32, len(g.Weight))
	newFirstOut := make([]uint32, n+1)

	type edge struct {
		from, to, weight uint32
	}
	edges := make([]edge, 0, len(g.Head))
	for u := uint32(0); u < n; u++ {
		s, e := g.EdgesFrom(u)
		for i := s; i < e; i++ {
			edges = append(edges, edge{from: rank[u], to: rank[g.Head[i]], weight: g.Weight[i]})
		}
	}

	for _, e := range edges {
		newFirstOut[e.from+1]++
	}
	for i := uint32(1); i <= n; i++ {
		newFirstOut[i] += newFirstOut[i-1]
	}
	pos := make([]uint32, n)
	copy(pos, newFirstOut[:n])
	for _, e := range edges {
		idx := pos[e.from]
		newHead[idx] = e.to
		newWeight[idx] = e.weight
		pos[e.from]++
	}

	return &Graph{NumNodes: n, FirstOut: newFirstOut, Head: newHead, Weight: newWeight}
}
