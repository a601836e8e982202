// Package tdquery implements the two query entry points spec.md §4.6/§4.7
// describe: distance/path point queries and profile queries over a
// customized CCH overlay. Both share a corridor phase (scalar bound
// search over the overlay, used for pruning only, not as an A* potential) and a
// relax phase that recursively unpacks shortcut sources to evaluate the
// real time-dependent travel time.
package tdquery

import (
	"math"

	"tdcch/pkg/cch"
	"tdcch/pkg/tdfunc"
)

// OriginalGraph is the road graph a query recurses into once it reaches a
// SourceOriginalEdge leaf while unpacking a shortcut (spec.md §4.6.2).
type OriginalGraph interface {
	TravelTimeFunction(arc uint32) tdfunc.ATTF
}

// incomingEdge is one entry of a node's incoming index into a HalfGraph:
// the lower-rank tail and that half-graph's edge id for (tail, node).
type incomingEdge struct {
	Tail uint32
	Edge uint32
}

// Graph is the query-time view of a customized overlay: the compacted
// upward/downward half-graphs plus an incoming index over the downward
// half-graph, needed to walk "down" from a high-rank node toward a
// destination (the compacted HalfGraph only gives each side's own
// tail-ordered CSR, the same shape CompactHalfGraph produces for both
// directions — descending therefore needs the reverse lookup, the same
// role Topology.Inverted plays before compaction).
type Graph struct {
	Customized *cch.CustomizedGraph
	Original   OriginalGraph

	downwardIncoming [][]incomingEdge
}

// NewGraph wraps a customized overlay for querying.
func NewGraph(g *cch.CustomizedGraph, original OriginalGraph) *Graph {
	qg := &Graph{Customized: g, Original: original}
	qg.downwardIncoming = make([][]incomingEdge, g.NumNodes)
	for v := uint32(0); v < g.NumNodes; v++ {
		s, e := g.Downward.FirstOut[v], g.Downward.FirstOut[v+1]
		for edgeID := s; edgeID < e; edgeID++ {
			w := g.Downward.Head[edgeID]
			qg.downwardIncoming[w] = append(qg.downwardIncoming[w], incomingEdge{Tail: v, Edge: edgeID})
		}
	}
	return qg
}

// UpwardNeighbors returns v's outgoing CSR range in the upward half-graph.
func (g *Graph) UpwardNeighbors(v uint32) (start, end uint32) {
	return g.Customized.Upward.FirstOut[v], g.Customized.Upward.FirstOut[v+1]
}

// DownwardDescendants returns, for node w, every (v, edge) pair letting a
// query step down from w to the lower-rank node v.
func (g *Graph) DownwardDescendants(w uint32) []incomingEdge {
	return g.downwardIncoming[w]
}

// Eval recursively unpacks the shortcut at (side, edge) and evaluates its
// real travel time for departure at time t, collecting the original road
// arcs realizing it in departure order (spec.md §4.6.2, §4.6.5). Exact
// Sources only: approximated (cached-bound) shortcuts are out of a
// single query's scope here the same way the customizer's own
// maybeApproximate only ever discards the *cache*, never Sources — a
// query always has Sources to recurse through regardless of whether a
// cache existed.
func (g *Graph) Eval(side cch.EdgeSide, edge uint32, t float64) (arrival float64, arcs []uint32) {
	h := g.half(side)
	src := h.SourcesOf(edge).At(t)
	switch src.Kind {
	case cch.SourceOriginalEdge:
		ttf := g.Original.TravelTimeFunction(src.ArcID)
		return t + ttf.Eval(t), []uint32{src.ArcID}
	case cch.SourceShortcutPair:
		mid, downArcs := g.Eval(src.DownEdge.Side, src.DownEdge.Index, t)
		end, upArcs := g.Eval(src.UpEdge.Side, src.UpEdge.Index, mid)
		return end, append(downArcs, upArcs...)
	default:
		return math.Inf(1), nil // None: no path realizes this shortcut
	}
}

// TTF reconstructs the full periodic travel-time function of the shortcut
// at (side, edge) from its Sources, the way the customizer's own cache
// would have read if ClearPLF hadn't already discarded it (spec.md §4.5.4
// "main memory saving", §4.7 "profile query"). Each Source interval's
// winning choice is Link(down, up) (or the original arc's own function)
// restricted to that interval and spliced onto the result with
// AppendRange, mirroring how the customizer builds a merged cache one
// triangle at a time.
func (g *Graph) TTF(side cch.EdgeSide, edge uint32) tdfunc.ATTF {
	srcs := g.half(side).SourcesOf(edge)
	if !srcs.IsValidPath() {
		panic("tdquery: TTF called on an edge with no valid path")
	}
	if len(srcs) == 1 {
		if ttf, ok := g.leafTTF(srcs[0].Src); ok {
			return ttf
		}
	}

	exact := true
	for _, iv := range srcs {
		if ttf, ok := g.leafTTF(iv.Src); !ok || !ttf.IsExact() {
			exact = false
			break
		}
	}

	var lowerPts, upperPts []tdfunc.TTFPoint
	for i, iv := range srcs {
		end := tdfunc.Period
		if i+1 < len(srcs) {
			end = srcs[i+1].At
		}
		leaf, _ := g.leafTTF(iv.Src)
		lowerPts = tdfunc.AppendRange(lowerPts, leaf.LowerPLF(), iv.At, end)
		if !exact {
			upperPts = tdfunc.AppendRange(upperPts, leaf.UpperPLF(), iv.At, end)
		}
	}
	closeWrap(lowerPts)
	if exact {
		return tdfunc.NewExactATTF(tdfunc.NewPeriodicPLF(lowerPts))
	}
	closeWrap(upperPts)
	return tdfunc.NewApproxATTF(tdfunc.NewPeriodicPLF(lowerPts), tdfunc.NewPeriodicPLF(upperPts))
}

// closeWrap forces the last point's value to equal the first's: Sources
// always spans a full period's worth of intervals (the first starts at 0,
// the last ends at Period by construction), so this only ever corrects
// sub-epsilon floating-point drift, never a real periodicity violation.
func closeWrap(pts []tdfunc.TTFPoint) {
	if len(pts) > 1 {
		pts[len(pts)-1].Val = pts[0].Val
	}
}

// leafTTF resolves one ShortcutSource to its travel-time function: an
// original arc's function directly, or the Link of its two triangle
// operands' (recursively reconstructed) functions. None has no function.
func (g *Graph) leafTTF(src cch.ShortcutSource) (tdfunc.ATTF, bool) {
	switch src.Kind {
	case cch.SourceOriginalEdge:
		return g.Original.TravelTimeFunction(src.ArcID), true
	case cch.SourceShortcutPair:
		down := g.TTF(src.DownEdge.Side, src.DownEdge.Index)
		up := g.TTF(src.UpEdge.Side, src.UpEdge.Index)
		return tdfunc.LinkATTF(down, up), true
	default:
		return tdfunc.ATTF{}, false
	}
}

// Lower/Upper read one edge's scalar bound, the value the corridor phase
// searches over.
func (g *Graph) Lower(side cch.EdgeSide, edge uint32) float64 { return g.half(side).Lower[edge] }
func (g *Graph) Upper(side cch.EdgeSide, edge uint32) float64 { return g.half(side).Upper[edge] }

func (g *Graph) half(side cch.EdgeSide) *cch.HalfGraph {
	if side == cch.Upward {
		return &g.Customized.Upward
	}
	return &g.Customized.Downward
}
