package tdquery

import (
	"math"

	"tdcch/pkg/cch"
	"tdcch/pkg/tdfunc"
)

// ProfileResult is the outcome of a profile query over the requested
// departure window (spec.md §4.7): arrival time as a function of
// departure time on [DepartureStart, DepartureEnd], plus the original
// arcs realizing it at the window's start (a representative unpacking,
// not a per-instant one — see spec.md §4.6.4's "first original arcs in
// search space").
type ProfileResult struct {
	DepartureStart float64
	DepartureEnd   float64
	Exact          bool
	Lower          tdfunc.PartialPLF
	Upper          tdfunc.PartialPLF // zero value when Exact
	Arcs           []uint32
}

// ProfileQuery answers "for every departure time in [depStart, depEnd],
// what is the arrival time at t" (spec.md §4.7). A point query replays
// the exact relax phase once per departure instant; a profile query
// instead composes the travel-time *function* of one meeting node's
// s->r and r->t legs via Link and samples the window out of that one
// composed function. It picks the single scalar-bound-optimal meeting
// node rather than merging over every candidate meeting node the
// corridor phase reaches — documented in DESIGN.md as a deliberate scope
// simplification, the profile-query analogue of PointQuery's corridor
// restriction.
func ProfileQuery(g *Graph, s, t uint32, depStart, depEnd float64) (*ProfileResult, error) {
	fwd := ascendBounds(g, upwardSide, s)
	bwd := ascendBounds(g, downwardSide, t)

	meet, ok := bestMeetNode(g.Customized.NumNodes, fwd, bwd)
	if !ok {
		return nil, ErrNoRoute
	}

	upEdges := chainToSeed(fwd, meet)  // s -> ... -> meet
	downEdges := chainFromMeet(bwd, meet) // meet -> ... -> t

	whole, exact := composeChain(g, upEdges, downEdges)

	arcs := unpackChainAt(g, upEdges, downEdges, depStart)

	res := &ProfileResult{DepartureStart: depStart, DepartureEnd: depEnd, Exact: exact, Arcs: arcs}
	lowerPts := tdfunc.AppendRange(nil, whole.LowerPLF(), depStart, depEnd)
	res.Lower = tdfunc.NewPartialPLF(lowerPts)
	if !exact {
		upperPts := tdfunc.AppendRange(nil, whole.UpperPLF(), depStart, depEnd)
		res.Upper = tdfunc.NewPartialPLF(upperPts)
	}
	return res, nil
}

func bestMeetNode(n uint32, fwd, bwd *corridorSide) (uint32, bool) {
	best := noNode
	bestDist := math.Inf(1)
	for v := uint32(0); v < n; v++ {
		if math.IsInf(fwd.Dist[v], 1) || math.IsInf(bwd.Dist[v], 1) {
			continue
		}
		total := fwd.Dist[v] + bwd.Dist[v]
		if total < bestDist {
			bestDist = total
			best = v
		}
	}
	return best, best != noNode
}

// chainToSeed walks a corridorSide's predecessor tree from target back to
// its seed and reverses it, giving the edges in physical travel order
// seed -> ... -> target (used for the forward/ascend leg, seeded at s).
func chainToSeed(cs *corridorSide, target uint32) []uint32 {
	var edges []uint32
	for v := target; cs.Pred[v].Has; v = cs.Pred[v].From {
		edges = append(edges, cs.Pred[v].Edge)
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return edges
}

// chainFromMeet walks a corridorSide's predecessor tree from the meeting
// node toward its seed without reversing: a Downward edge (u,w) already
// carries the w->u value, so this order is already physical travel order
// meet -> ... -> t (used for the descend leg, seeded at t).
func chainFromMeet(cs *corridorSide, meet uint32) []uint32 {
	var edges []uint32
	for v := meet; cs.Pred[v].Has; v = cs.Pred[v].From {
		edges = append(edges, cs.Pred[v].Edge)
	}
	return edges
}

func composeChain(g *Graph, upEdges, downEdges []uint32) (tdfunc.ATTF, bool) {
	var whole tdfunc.ATTF
	first := true
	link := func(side cch.EdgeSide, edge uint32) {
		leg := g.TTF(side, edge)
		if first {
			whole, first = leg, false
			return
		}
		whole = tdfunc.LinkATTF(whole, leg)
	}
	for _, e := range upEdges {
		link(cch.Upward, e)
	}
	for _, e := range downEdges {
		link(cch.Downward, e)
	}
	if first {
		whole = tdfunc.NewExactATTF(tdfunc.Constant(0))
	}
	return whole, whole.IsExact()
}

func unpackChainAt(g *Graph, upEdges, downEdges []uint32, t float64) []uint32 {
	var arcs []uint32
	cur := t
	for _, e := range upEdges {
		at, a := g.Eval(cch.Upward, e, cur)
		arcs = concatArcs(arcs, a)
		cur = at
	}
	for _, e := range downEdges {
		at, a := g.Eval(cch.Downward, e, cur)
		arcs = concatArcs(arcs, a)
		cur = at
	}
	return arcs
}
