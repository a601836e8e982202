// Package tdgraph is the time-dependent road graph: the on-disk/in-memory
// CSR representation every original arc's periodic travel-time function is
// read from, generalized from pkg/graph's bare scalar Weight array to a
// shared breakpoint arena indexed per arc.
package tdgraph

import "tdcch/pkg/tdfunc"

// Graph is a directed graph in CSR form where every arc carries a periodic
// travel-time PLF instead of a single scalar weight. Breakpoints for all
// arcs are packed into one shared (BreakAt, BreakVal) arena — the same
// flattened-array idiom pkg/graph/graph.go uses for edge shape geometry —
// so a constant-travel-time arc (the overwhelming majority: service roads,
// residential streets with no observed congestion) costs exactly one
// arena slot instead of a whole separate allocation.
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	FirstOut []uint32 // len NumNodes+1
	Head     []uint32 // len NumEdges

	// FreeFlow is each arc's scalar lower-bound travel time in
	// milliseconds — the minimum of its PLF, kept redundantly alongside
	// the arena so pkg/tdcontract's contraction proxy never has to walk
	// breakpoints just to get an ordering weight.
	FreeFlow []uint32

	ArcFirstBreak []uint32  // len NumEdges+1, offsets into BreakAt/BreakVal
	BreakAt       []float64 // breakpoint times, seconds within tdfunc.Period
	BreakVal      []float64 // breakpoint travel times, seconds

	NodeLat []float64
	NodeLon []float64

	// Edge geometry: intermediate shape nodes for rendering, carried
	// through unchanged from pkg/graph/graph.go.
	GeoFirstOut []uint32
	GeoShapeLat []float64
	GeoShapeLon []float64
}

// EdgesFrom returns the edge index range for edges leaving node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// TravelTimeFunction reconstructs arc e's periodic travel-time ATTF from
// the shared breakpoint arena, satisfying pkg/tdcustomize.OriginalGraph
// and pkg/tdquery.OriginalGraph directly — *Graph IS the original-graph
// collaborator both packages need, with no adapter layer in between.
func (g *Graph) TravelTimeFunction(arc uint32) tdfunc.ATTF {
	s, e := g.ArcFirstBreak[arc], g.ArcFirstBreak[arc+1]
	if e-s <= 1 {
		return tdfunc.NewExactATTF(tdfunc.Constant(g.BreakVal[s]))
	}
	points := make([]tdfunc.TTFPoint, e-s)
	for i := s; i < e; i++ {
		points[i-s] = tdfunc.TTFPoint{At: g.BreakAt[i], Val: g.BreakVal[i]}
	}
	return tdfunc.NewExactATTF(tdfunc.NewPeriodicPLF(points))
}
