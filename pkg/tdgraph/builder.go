package tdgraph

import (
	"sort"

	"github.com/paulmach/osm"

	osmparser "tdcch/pkg/osm"
)

// Build creates a CSR time-dependent Graph from parsed OSM edges, packing
// every arc's periodic profile into the shared breakpoint arena.
func Build(result *osmparser.ParseResult) *Graph {
	edges := result.Edges
	if len(edges) == 0 {
		return &Graph{}
	}

	nodeSet := make(map[osm.NodeID]uint32)
	var nodeIDs []osm.NodeID

	addNode := func(id osm.NodeID) uint32 {
		if idx, ok := nodeSet[id]; ok {
			return idx
		}
		idx := uint32(len(nodeIDs))
		nodeSet[id] = idx
		nodeIDs = append(nodeIDs, id)
		return idx
	}

	for i := range edges {
		addNode(edges[i].FromNodeID)
		addNode(edges[i].ToNodeID)
	}

	numNodes := uint32(len(nodeIDs))

	type edgeRec struct {
		from      uint32
		to        uint32
		freeFlow  uint32
		breaks    []float64
		vals      []float64
		shapeLats []float64
		shapeLons []float64
	}

	compact := make([]edgeRec, len(edges))
	for i, e := range edges {
		breaks := make([]float64, len(e.Profile))
		vals := make([]float64, len(e.Profile))
		for j, p := range e.Profile {
			breaks[j] = p.At
			vals[j] = p.Val
		}
		compact[i] = edgeRec{
			from:      nodeSet[e.FromNodeID],
			to:        nodeSet[e.ToNodeID],
			freeFlow:  e.FreeFlow,
			breaks:    breaks,
			vals:      vals,
			shapeLats: e.ShapeLats,
			shapeLons: e.ShapeLons,
		}
	}

	sort.Slice(compact, func(i, j int) bool {
		if compact[i].from != compact[j].from {
			return compact[i].from < compact[j].from
		}
		return compact[i].to < compact[j].to
	})

	numEdges := uint32(len(compact))
	firstOut := make([]uint32, numNodes+1)
	head := make([]uint32, numEdges)
	freeFlow := make([]uint32, numEdges)

	arcFirstBreak := make([]uint32, numEdges+1)
	var breakAt, breakVal []float64

	geoFirstOut := make([]uint32, numEdges+1)
	var geoShapeLat, geoShapeLon []float64

	for i, e := range compact {
		head[i] = e.to
		freeFlow[i] = e.freeFlow

		arcFirstBreak[i] = uint32(len(breakAt))
		breakAt = append(breakAt, e.breaks...)
		breakVal = append(breakVal, e.vals...)

		geoFirstOut[i] = uint32(len(geoShapeLat))
		geoShapeLat = append(geoShapeLat, e.shapeLats...)
		geoShapeLon = append(geoShapeLon, e.shapeLons...)
	}
	arcFirstBreak[numEdges] = uint32(len(breakAt))
	geoFirstOut[numEdges] = uint32(len(geoShapeLat))

	for _, e := range compact {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		firstOut[i] += firstOut[i-1]
	}

	nodeLat := make([]float64, numNodes)
	nodeLon := make([]float64, numNodes)
	for id, idx := range nodeSet {
		nodeLat[idx] = result.NodeLat[id]
		nodeLon[idx] = result.NodeLon[id]
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
