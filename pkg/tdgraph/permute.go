package tdgraph

import "sort"

// Permute relabels every node of g by rank (rank[oldID] = newID), the
// tdgraph-side counterpart of pkg/tdcontract.Permute — used once
// tdcontract.Contract has produced a node order, to bring the original
// time-dependent graph into the same rank space as the CCH topology
// built from that order's edges (cch.BuildTopology requires node id ==
// rank). Every arc's breakpoint slice moves with it; arc ids are not
// preserved (they are reassigned by the same counting-sort CSR rebuild
// FilterToComponent and Build already use).
func Permute(g *Graph, rank []uint32) *Graph {
	numNodes := g.NumNodes
	if numNodes == 0 {
		return &Graph{}
	}

	type edge struct {
		from, to, freeFlow uint32
		breakAt, breakVal  []float64
		shapeLats          []float64
		shapeLons          []float64
	}
	edges := make([]edge, 0, g.NumEdges)

	for u := uint32(0); u < numNodes; u++ {
		s, e := g.EdgesFrom(u)
		for arc := s; arc < e; arc++ {
			bs, be := g.ArcFirstBreak[arc], g.ArcFirstBreak[arc+1]
			breakAt := make([]float64, be-bs)
			breakVal := make([]float64, be-bs)
			copy(breakAt, g.BreakAt[bs:be])
			copy(breakVal, g.BreakVal[bs:be])

			var shapeLats, shapeLons []float64
			if g.GeoFirstOut != nil {
				gs, ge := g.GeoFirstOut[arc], g.GeoFirstOut[arc+1]
				if ge > gs {
					shapeLats = make([]float64, ge-gs)
					shapeLons = make([]float64, ge-gs)
					copy(shapeLats, g.GeoShapeLat[gs:ge])
					copy(shapeLons, g.GeoShapeLon[gs:ge])
				}
			}

			edges = append(edges, edge{
				from:      rank[u],
				to:        rank[g.Head[arc]],
				freeFlow:  g.FreeFlow[arc],
				breakAt:   breakAt,
				breakVal:  breakVal,
				shapeLats: shapeLats,
				shapeLons: shapeLons,
			})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	numEdges := uint32(len(edges))
	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numEdges)
	freeFlow := make([]uint32, numEdges)
	arcFirstBreak := make([]uint32, numEdges+1)
	var breakAt, breakVal []float64
	geoFirstOut := make([]uint32, numEdges+1)
	var geoShapeLat, geoShapeLon []float64

	for _, e := range edges {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	pos := make([]uint32, numNodes)
	copy(pos, firstOut[:numNodes])
	for _, e := range edges {
		idx := pos[e.from]
		head[idx] = e.to
		freeFlow[idx] = e.freeFlow
		arcFirstBreak[idx] = uint32(len(breakAt))
		breakAt = append(breakAt, e.breakAt...)
		breakVal = append(breakVal, e.breakVal...)
		geoFirstOut[idx] = uint32(len(geoShapeLat))
		geoShapeLat = append(geoShapeLat, e.shapeLats...)
		geoShapeLon = append(geoShapeLon, e.shapeLons...)
		pos[e.from]++
	}
	arcFirstBreak[numEdges] = uint32(len(breakAt))
	geoFirstOut[numEdges] = uint32(len(geoShapeLat))

	nodeLat := make([]float64, numNodes)
	nodeLon := make([]float64, numNodes)
	for old := uint32(0); old < numNodes; old++ {
		nodeLat[rank[old]] = g.NodeLat[old]
		nodeLon[rank[old]] = g.NodeLon[old]
	}

	return &Graph{
		NumNodes:      numNodes,
		NumEdges:      numEdges,
		FirstOut:      firstOut,
		Head:          head,
		FreeFlow:      freeFlow,
		ArcFirstBreak: arcFirstBreak,
		BreakAt:       breakAt,
		BreakVal:      breakVal,
		NodeLat:       nodeLat,
		NodeLon:       nodeLon,
		GeoFirstOut:   geoFirstOut,
		GeoShapeLat:   geoShapeLat,
		GeoShapeLon:   geoShapeLon,
	}
}
