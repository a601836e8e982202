package tdquery

import "math"

// noNode marks "no predecessor", grounded on the teacher's dijkstra.go
// noNode sentinel.
const noNode = ^uint32(0)

// cameFrom names the edge a corridor search's predecessor tree used to
// first reach a node.
type cameFrom struct {
	From uint32
	Edge uint32
	Has  bool
}

// corridorSide is one direction's scalar-bound search result: the
// settled distance to every reached node plus how it was first reached.
// This is the cheap, time-independent half of the corridor phase
// (spec.md §4.6.1) — it bounds which CCH edges can possibly matter to an
// exact query without ever evaluating a single PLF.
type corridorSide struct {
	Dist []float64
	Pred []cameFrom
}

func newCorridorSide(n uint32) *corridorSide {
	dist := make([]float64, n)
	pred := make([]cameFrom, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	return &corridorSide{Dist: dist, Pred: pred}
}

// ascendBounds runs a plain Dijkstra over one half-graph's own CSR,
// relaxing on the scalar Lower bound, seeded at a single node. Both the
// forward search (over Upward, seeded at the source) and the backward
// search (over Downward, seeded at the target) use this same ascent
// structure: a Downward edge (v,w) with v<w already carries the w->v
// shortcut value at v's CSR slot, so ascending Downward's CSR from t
// computes exactly "cost of descending from w down to t", symmetric to
// ascending Upward's CSR from s (spec.md §4.3 "overlay topology",
// §4.6.1 "corridor phase").
func ascendBounds(g *Graph, side side, seed uint32) *corridorSide {
	cs := newCorridorSide(g.Customized.NumNodes)
	cs.Dist[seed] = 0
	var pq minHeap
	pq.Push(seed, 0)
	for pq.Len() > 0 {
		item := pq.Pop()
		u, d := item.Node, item.Dist
		if d > cs.Dist[u] {
			continue
		}
		s, e := side.neighbors(g, u)
		for edge := s; edge < e; edge++ {
			w := side.head(g, edge)
			cand := d + side.lower(g, edge)
			if cand < cs.Dist[w] {
				cs.Dist[w] = cand
				cs.Pred[w] = cameFrom{From: u, Edge: edge, Has: true}
				pq.Push(w, cand)
			}
		}
	}
	return cs
}

// side abstracts the one structural difference between the forward and
// backward scalar sweeps: which half-graph's CSR to ascend.
type side struct {
	isUpward bool
}

var upwardSide = side{isUpward: true}
var downwardSide = side{isUpward: false}

func (s side) neighbors(g *Graph, v uint32) (start, end uint32) {
	if s.isUpward {
		return g.Customized.Upward.FirstOut[v], g.Customized.Upward.FirstOut[v+1]
	}
	return g.Customized.Downward.FirstOut[v], g.Customized.Downward.FirstOut[v+1]
}

func (s side) head(g *Graph, edge uint32) uint32 {
	if s.isUpward {
		return g.Customized.Upward.Head[edge]
	}
	return g.Customized.Downward.Head[edge]
}

func (s side) lower(g *Graph, edge uint32) float64 {
	if s.isUpward {
		return g.Customized.Upward.Lower[edge]
	}
	return g.Customized.Downward.Lower[edge]
}
