package tdgraph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient — max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// LargestComponent returns the node indices belonging to the largest
// weakly connected component (treating the directed graph as undirected).
func LargestComponent(g *Graph) []uint32 {
	if g.NumNodes == 0 {
		return nil
	}

	uf := NewUnionFind(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Head[e])
		}
	}

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent creates a new graph containing only the specified nodes,
// carrying each surviving arc's breakpoint slice along with it.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return &Graph{}
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	numNodes := uint32(len(nodes))

	type edge struct {
		from, to, freeFlow uint32
		breakAt, breakVal  []float64
		shapeLats          []float64
		shapeLons          []float64
	}
	var edges []edge

	for _, oldU := range nodes {
		start, end := g.EdgesFrom(oldU)
		for e := start; e < end; e++ {
			oldV := g.Head[e]
			newV, ok := oldToNew[oldV]
			if !ok {
				continue
			}

			bs, be := g.ArcFirstBreak[e], g.ArcFirstBreak[e+1]
			breakAt := make([]float64, be-bs)
			breakVal := make([]float64, be-bs)
			copy(breakAt, g.BreakAt[bs:be])
			copy(breakVal, g.BreakVal[bs:be])

			var shapeLats, shapeLons []float64
			if g.GeoFirstOut != nil {
				geoStart := g.GeoFirstOut[e]
				geoEnd := g.GeoFirstOut[e+1]
				if geoEnd > geoStart {
					shapeLats = make([]float64, geoEnd-geoStart)
					copy(shapeLats, g.GeoShapeLat[geoStart:geoEnd])
					shapeLons = make([]float64, geoEnd-geoStart)
					copy(shapeLons, g.GeoShapeLon[geoStart:geoEnd])
				}
			}
			edges = append(edges, edge{
				from:      oldToNew[oldU],
				to:        newV,
				freeFlow:  g.FreeFlow[e],
				breakAt:   breakAt,
				breakVal:  breakVal,
				shapeLats: shapeLats,
				shapeLons: shapeLons,
			})
		}
	}

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
	for newIdx, oldIdx := range nodes {
		nodeLat[newIdx] = g.NodeLat[oldIdx]
		nodeLon[newIdx] = g.NodeLon[oldIdx]
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
