package tdquery

import (
	"errors"
	"math"

	"tdcch/pkg/cch"
)

// ErrNoRoute reports that no path connects the query's source and target.
var ErrNoRoute = errors.New("tdquery: no route")

// PointResult is the outcome of a point query: the real arrival time for
// a departure at DepartureTime, and the original road arcs realizing it
// in departure order (spec.md §4.6, §4.6.5 "path reconstruction").
type PointResult struct {
	DepartureTime float64
	ArrivalTime   float64
	Arcs          []uint32
}

// PointQuery answers "depart s at depTime, when do I reach t, and via
// which arcs" (spec.md §4.6). The corridor phase (ascendBounds, both
// directions) restricts which nodes are worth exploring; the relax phase
// is a single real-time Dijkstra from s that can both ascend (via Upward
// edges) and descend (via Downward edges, reached through the incoming
// index) within that corridor, settling nodes in increasing arrival-time
// order exactly like the teacher's bidirectional CH search — except here
// only the forward direction carries a genuine departure time, so there
// is one search instead of two meeting in the middle (see DESIGN.md). The
// queue is keyed by arrival time alone: the corridor bounds only decide
// whether a node's edges are relaxed and are not used as an A* potential.
func PointQuery(g *Graph, s, t uint32, depTime float64) (*PointResult, error) {
	fwd := ascendBounds(g, upwardSide, s)
	bwd := ascendBounds(g, downwardSide, t)

	n := g.Customized.NumNodes
	arrival := make([]float64, n)
	arcsTo := make([][]uint32, n)
	settled := make([]bool, n)
	for i := range arrival {
		arrival[i] = math.Inf(1)
	}
	arrival[s] = depTime

	var pq minHeap
	pq.Push(s, depTime)
	for pq.Len() > 0 {
		item := pq.Pop()
		u := item.Node
		if settled[u] {
			continue
		}
		if item.Dist > arrival[u] {
			continue
		}
		settled[u] = true
		if u == t {
			break
		}

		if !math.IsInf(fwd.Dist[u], 1) {
			s2, e2 := g.UpwardNeighbors(u)
			for edge := s2; edge < e2; edge++ {
				w := g.Customized.Upward.Head[edge]
				at, arcs := g.Eval(cch.Upward, edge, arrival[u])
				if at < arrival[w] {
					arrival[w] = at
					arcsTo[w] = concatArcs(arcsTo[u], arcs)
					pq.Push(w, at)
				}
			}
		}
		if !math.IsInf(bwd.Dist[u], 1) {
			for _, inc := range g.DownwardDescendants(u) {
				v := inc.Tail
				at, arcs := g.Eval(cch.Downward, inc.Edge, arrival[u])
				if at < arrival[v] {
					arrival[v] = at
					arcsTo[v] = concatArcs(arcsTo[u], arcs)
					pq.Push(v, at)
				}
			}
		}
	}

	if math.IsInf(arrival[t], 1) {
		return nil, ErrNoRoute
	}
	return &PointResult{DepartureTime: depTime, ArrivalTime: arrival[t], Arcs: arcsTo[t]}, nil
}

func concatArcs(prefix, suffix []uint32) []uint32 {
	out := make([]uint32, 0, len(prefix)+len(suffix))
	out = append(out, prefix...)
	out = append(out, suffix...)
	return out
}
