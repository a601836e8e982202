package cch

import "sort"

// InvertedEdge is one entry of a node's inverted (incoming-upward) index:
// the lower-rank tail and the CCH edge id of (tail, node).
type InvertedEdge struct {
	Tail uint32
	Edge uint32
}

// Edge is an input arc to BuildTopology: From must be the lower-rank
// endpoint so the resulting graph is already in upward orientation.
type Edge struct {
	From, To uint32
}

// Topology is the CCH overlay's graph structure: CSR arrays over the
// upward half-graph, the elimination tree, and the inverted index,
// exactly the "small interface" spec.md §4.3 describes as externally
// provided. Node order/rank is assumed already baked into node ids (node
// id == rank); this mirrors how the teacher's buildOverlay (pkg/ch/
// contractor.go) treats post-contraction rank as the node numbering.
type Topology struct {
	NumNodes uint32
	FirstOut []uint32 // len NumNodes+1
	Head     []uint32 // len NumArcs, head[e] > tail(e) always
	Tail     []uint32 // len NumArcs, derived from FirstOut

	EliminationParent []int32 // parent rank, -1 for a root
	Inverted          [][]InvertedEdge
}

// BuildTopology bucket-sorts upwardEdges into CSR form (the same
// counting-sort construction as the teacher's buildCSR closure in
// pkg/ch/contractor.go, generalized from weighted edges to the bare
// topology the customizable hierarchy needs), then derives the
// elimination tree and inverted index from it.
func BuildTopology(numNodes uint32, upwardEdges []Edge) *Topology {
	n := numNodes
	firstOut := make([]uint32, n+1)
	for _, e := range upwardEdges {
		firstOut[e.From+1]++
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}

	m := uint32(len(upwardEdges))
	head := make([]uint32, m)
	tail := make([]uint32, m)
	pos := make([]uint32, n)
	copy(pos, firstOut[:n])
	for _, e := range upwardEdges {
		idx := pos[e.From]
		head[idx] = e.To
		tail[idx] = e.From
		pos[e.From]++
	}

	for v := uint32(0); v < n; v++ {
		s, e := firstOut[v], firstOut[v+1]
		sortRangeByHead(head[s:e])
	}

	parent := make([]int32, n)
	for v := uint32(0); v < n; v++ {
		s, e := firstOut[v], firstOut[v+1]
		if s == e {
			parent[v] = -1
		} else {
			parent[v] = int32(head[s])
		}
	}

	inverted := make([][]InvertedEdge, n)
	for v := uint32(0); v < n; v++ {
		s, e := firstOut[v], firstOut[v+1]
		for edgeID := s; edgeID < e; edgeID++ {
			w := head[edgeID]
			inverted[w] = append(inverted[w], InvertedEdge{Tail: v, Edge: edgeID})
		}
	}

	return &Topology{
		NumNodes:          n,
		FirstOut:          firstOut,
		Head:              head,
		Tail:              tail,
		EliminationParent: parent,
		Inverted:          inverted,
	}
}

// sortRangeByHead sorts a node's out-edge slice by head rank ascending,
// required both for the elimination-tree parent (the first entry after
// sorting) and for FindEdge's binary search.
func sortRangeByHead(heads []uint32) {
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })
}

// UpwardNeighbors returns the CSR range [start,end) of out-edges from v.
func (t *Topology) UpwardNeighbors(v uint32) (start, end uint32) {
	return t.FirstOut[v], t.FirstOut[v+1]
}

// FindEdge looks up the CCH edge id of (tail, head) among tail's sorted
// out-edges, by binary search.
func (t *Topology) FindEdge(tail, head uint32) (uint32, bool) {
	s, e := t.FirstOut[tail], t.FirstOut[tail+1]
	lo, hi := s, e
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Head[mid] < head {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < e && t.Head[lo] == head {
		return lo, true
	}
	return 0, false
}

// LowerTrianglesForEdge enumerates the lower triangles relaxing CCH edge
// (v,w): merge-walk inverted[v] and inverted[w] in ascending tail order,
// yielding every u<v<w for which both (u,v) and (u,w) exist (spec.md
// §4.3 "Lower triangle at v", §4.5.4's merge-walk).
func (t *Topology) LowerTrianglesForEdge(v, w uint32, yield func(downEdge, upEdge uint32)) {
	invV := t.Inverted[v]
	invW := t.Inverted[w]
	i, j := 0, 0
	for i < len(invV) && j < len(invW) {
		ui, uj := invV[i].Tail, invW[j].Tail
		switch {
		case ui < uj:
			i++
		case ui > uj:
			j++
		default:
			yield(invV[i].Edge, invW[j].Edge)
			i++
			j++
		}
	}
}

// UpperTrianglesAt enumerates the upper triangles at v used by perfect
// bound customization (§4.5.3): every pair of upward neighbors w,t of v
// (in ascending rank order since Head is sorted) connected by a CCH edge
// in either direction.
func (t *Topology) UpperTrianglesAt(v uint32, yield func(edgeVW, edgeVT, edgeWT uint32, wtIsForward bool)) {
	s, e := t.FirstOut[v], t.FirstOut[v+1]
	for i := s; i < e; i++ {
		for j := i + 1; j < e; j++ {
			w, mid := t.Head[i], t.Head[j]
			if edge, ok := t.FindEdge(w, mid); ok {
				yield(i, j, edge, true)
				continue
			}
			if edge, ok := t.FindEdge(mid, w); ok {
				yield(i, j, edge, false)
			}
		}
	}
}

// EliminationTreeAncestors walks the elimination tree from v to the root,
// calling visit on each node including v itself — the "stepped
// elimination tree" walk shared by both query phases (§4.6.1).
func (t *Topology) EliminationTreeAncestors(v uint32, visit func(uint32)) {
	for cur := int32(v); cur != -1; cur = t.EliminationParent[cur] {
		visit(uint32(cur))
	}
}
