package tdcontract

import "testing"

// buildTestGraph mirrors pkg/ch/contractor_test.go's small bidirectional
// grid:
//
//	0 ---100--- 1 ---200--- 2
//	|                       |
//	300                    400
//	|                       |
//	3 ---500--- 4 ---600--- 5
func buildTestGraph() *Graph {
	type rawEdge struct{ from, to, weight uint32 }
	raw := []rawEdge{
		{0, 1, 100}, {1, 0, 100},
		{1, 2, 200}, {2, 1, 200},
		{0, 3, 300}, {3, 0, 300},
		{2, 5, 400}, {5, 2, 400},
		{3, 4, 500}, {4, 3, 500},
		{4, 5, 600}, {5, 4, 600},
	}
	n := uint32(6)
	firstOut := make([]uint32, n+1)
	for _, e := range raw {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}
	head := make([]uint32, len(raw))
	weight := make([]uint32, len(raw))
	pos := make([]uint32, n)
	copy(pos, firstOut[:n])
	for _, e := range raw {
		idx := pos[e.from]
		head[idx] = e.to
		weight[idx] = e.weight
		pos[e.from]++
	}
	return &Graph{NumNodes: n, FirstOut: firstOut, Head: head, Weight: weight}
}

func TestContractProducesAPermutationRank(t *testing.T) {
	g := buildTestGraph()
	order := Contract(g)

	seen := make([]bool, g.NumNodes)
	for node, rank := range order.Rank {
		if rank >= g.NumNodes {
			t.Fatalf("rank %d for node %d out of range", rank, node)
		}
		if seen[rank] {
			t.Fatalf("rank %d assigned to more than one node", rank)
		}
		seen[rank] = true
	}
}

func TestContractEdgesAreOrientedByRankAndCoverOriginals(t *testing.T) {
	g := buildTestGraph()
	order := Contract(g)

	if len(order.Edges) < int(g.NumEdges())/2 {
		t.Fatalf("got %d topology edges, expected at least as many as the %d undirected originals", len(order.Edges), g.NumEdges()/2)
	}
	for _, e := range order.Edges {
		if e.From >= e.To {
			t.Fatalf("edge (%d,%d) not oriented lower-rank-to-higher-rank", e.From, e.To)
		}
	}

	// Every original undirected pair must survive as some rank-space edge.
	rank := order.Rank
	pairs := [][2]uint32{{0, 1}, {1, 2}, {0, 3}, {2, 5}, {3, 4}, {4, 5}}
	for _, p := range pairs {
		ra, rb := rank[p[0]], rank[p[1]]
		lo, hi := ra, rb
		if lo > hi {
			lo, hi = hi, lo
		}
		found := false
		for _, e := range order.Edges {
			if e.From == lo && e.To == hi {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("original pair %v (rank %d,%d) missing from topology edges", p, ra, rb)
		}
	}
}

func TestContractHandlesEmptyGraph(t *testing.T) {
	order := Contract(&Graph{})
	if len(order.Rank) != 0 || len(order.Edges) != 0 {
		t.Fatalf("expected empty Order for an empty graph, got %+v", order)
	}
}

func TestPermuteRelabelsNodesByRank(t *testing.T) {
	g := buildTestGraph()
	rank := []uint32{5, 4, 3, 2, 1, 0} // reverse the node ids
	permuted := Permute(g, rank)

	if permuted.NumNodes != g.NumNodes {
		t.Fatalf("NumNodes = %d, want %d", permuted.NumNodes, g.NumNodes)
	}
	// Node 0's edges (to 1 weight 100, to 3 weight 300) now live under
	// rank[0] = 5.
	s, e := permuted.EdgesFrom(5)
	if e-s != 2 {
		t.Fatalf("node 5 (was 0) has %d out-edges, want 2", e-s)
	}
	gotWeights := map[uint32]uint32{}
	for i := s; i < e; i++ {
		gotWeights[permuted.Head[i]] = permuted.Weight[i]
	}
	if gotWeights[rank[1]] != 100 {
		t.Fatalf("edge to rank[1]=%d weight = %d, want 100", rank[1], gotWeights[rank[1]])
	}
	if gotWeights[rank[3]] != 300 {
		t.Fatalf("edge to rank[3]=%d weight = %d, want 300", rank[3], gotWeights[rank[3]])
	}
}
