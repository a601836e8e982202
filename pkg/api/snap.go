package api

import (
	"errors"
	"math"
	"sort"

	"tdcch/pkg/geo"
	"tdcch/pkg/tdgraph"
)

const maxSnapDistMeters = 500.0

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = errors.New("point too far from road")

// SnapResult is a query point snapped to its nearest road segment, as the
// graph node closest to it (spec.md §2's query entry points take node
// ranks, not coordinates — everything before that boundary belongs here).
type SnapResult struct {
	NodeU uint32
	NodeV uint32
	Ratio float64 // 0.0 = at NodeU, 1.0 = at NodeV
	Dist  float64 // meters from the query point to the snapped point
}

// Node returns whichever endpoint the snapped point is closer to — the
// query entry points operate on whole nodes, not a point along an edge.
func (s SnapResult) Node() uint32 {
	if s.Ratio < 0.5 {
		return s.NodeU
	}
	return s.NodeV
}

// Grid cell size in degrees. 0.01° ≈ 1.1 km at the equator — a 3×3 cell
// search covers ±1.1 km, well over the 500 m max snap distance.
const gridCellSize = 0.01

func gridCell(lat, lon float64) (latIdx, lonIdx int32) {
	return int32(math.Floor(lat / gridCellSize)), int32(math.Floor(lon / gridCellSize))
}

func cellKey(latIdx, lonIdx int32) uint64 {
	return uint64(uint32(latIdx))<<32 | uint64(uint32(lonIdx))
}

type cellEdge struct {
	key    uint64
	arc    uint32
	source uint32
}

// Snapper provides nearest-road snapping using a flat sorted grid index
// over the rank-space graph's arcs.
type Snapper struct {
	edges []cellEdge // sorted by key
	g     *tdgraph.Graph
}

// NewSnapper builds a flat spatial grid index from g's arcs.
func NewSnapper(g *tdgraph.Graph) *Snapper {
	totalEntries := 0
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			uLat, uLon := g.NodeLat[u], g.NodeLon[u]
			vLat, vLon := g.NodeLat[v], g.NodeLon[v]

			latLo, lonLo := gridCell(math.Min(uLat, vLat), math.Min(uLon, vLon))
			latHi, lonHi := gridCell(math.Max(uLat, vLat), math.Max(uLon, vLon))
			totalEntries += int(latHi-latLo+1) * int(lonHi-lonLo+1)
		}
	}

	edges := make([]cellEdge, 0, totalEntries)

	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			uLat, uLon := g.NodeLat[u], g.NodeLon[u]
			vLat, vLon := g.NodeLat[v], g.NodeLon[v]

			latLo, lonLo := gridCell(math.Min(uLat, vLat), math.Min(uLon, vLon))
			latHi, lonHi := gridCell(math.Max(uLat, vLat), math.Max(uLon, vLon))

			for la := latLo; la <= latHi; la++ {
				for lo := lonLo; lo <= lonHi; lo++ {
					edges = append(edges, cellEdge{key: cellKey(la, lo), arc: e, source: u})
				}
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool { return edges[i].key < edges[j].key })

	return &Snapper{edges: edges, g: g}
}

func (s *Snapper) cellRange(key uint64) []cellEdge {
	lo := sort.Search(len(s.edges), func(i int) bool { return s.edges[i].key >= key })
	if lo >= len(s.edges) || s.edges[lo].key != key {
		return nil
	}
	hi := sort.Search(len(s.edges), func(i int) bool { return s.edges[i].key > key })
	return s.edges[lo:hi]
}

// Snap finds the nearest road segment to the given lat/lng.
func (s *Snapper) Snap(lat, lng float64) (SnapResult, error) {
	centerLat, centerLon := gridCell(lat, lng)

	bestDist := math.Inf(1)
	var bestResult SnapResult

	for dLat := int32(-1); dLat <= 1; dLat++ {
		for dLon := int32(-1); dLon <= 1; dLon++ {
			key := cellKey(centerLat+dLat, centerLon+dLon)
			for _, ce := range s.cellRange(key) {
				u := ce.source
				v := s.g.Head[ce.arc]

				exactDist, ratio := geo.PointToSegmentDist(
					lat, lng,
					s.g.NodeLat[u], s.g.NodeLon[u],
					s.g.NodeLat[v], s.g.NodeLon[v],
				)

				if exactDist < bestDist {
					bestDist = exactDist
					bestResult = SnapResult{NodeU: u, NodeV: v, Ratio: ratio, Dist: exactDist}
				}
			}
		}
	}

	if bestDist > maxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}
	return bestResult, nil
}
