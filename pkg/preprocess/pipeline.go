// Package preprocess assembles the independently-grounded pieces (OSM
// ingest, contraction, CCH topology, customization) into the one-time and
// recurring pipelines cmd/tdrouted's subcommands drive: building a node
// order and topology once per region, then customizing it (initially and
// whenever traffic conditions change) into a CustomizedGraph ready for
// pkg/tdquery.
package preprocess

import (
	"context"
	"fmt"

	"tdcch/pkg/cch"
	"tdcch/pkg/tdcontract"
	"tdcch/pkg/tdcustomize"
	"tdcch/pkg/tdgraph"
)

// Topology bundles a CCH topology with the rank-space original graph and
// origin-arc mapping needed to customize it — the boundary between the
// one-time contraction step and the (re-)customization step.
type Topology struct {
	Topo      *cch.Topology
	RankGraph *tdgraph.Graph
	OrigArcs  tdcustomize.EdgeOrigArcs
}

// BuildProxy converts a time-dependent graph into tdcontract's scalar
// proxy shape (free-flow travel time standing in for weight), since
// contraction order only needs *some* consistent scalar metric, not the
// full periodic function (spec.md's contraction/ordering input is an
// external collaborator).
func BuildProxy(g *tdgraph.Graph) *tdcontract.Graph {
	return &tdcontract.Graph{
		NumNodes: g.NumNodes,
		FirstOut: g.FirstOut,
		Head:     g.Head,
		Weight:   g.FreeFlow,
	}
}

// Contract runs greedy min-degree contraction over g's free-flow proxy,
// permutes g into rank space, builds the CCH topology from the rank-space
// fill-in edges, and derives the EdgeOrigArcs mapping every topology edge
// needs to know which original arc (if any) it coincides with in each
// direction.
func Contract(g *tdgraph.Graph) *Topology {
	proxy := BuildProxy(g)
	order := tdcontract.Contract(proxy)

	rankGraph := tdgraph.Permute(g, order.Rank)

	topoEdges := make([]cch.Edge, len(order.Edges))
	for i, e := range order.Edges {
		topoEdges[i] = cch.Edge{From: e.From, To: e.To}
	}
	topo := cch.BuildTopology(g.NumNodes, topoEdges)

	return &Topology{
		Topo:      topo,
		RankGraph: rankGraph,
		OrigArcs:  buildOrigArcs(topo, rankGraph),
	}
}

// buildOrigArcs finds, for every topology edge (v,w) with rank(v) <
// rank(w), the original forward arc v->w (if one survived contraction
// directly, rather than only as shortcut fill-in) and the original
// reverse arc w->v, recording each as that side's origin arc id in
// rankGraph's own CSR numbering — rankGraph.TravelTimeFunction(arc) is
// exactly the OriginalGraph lookup tdcustomize and tdquery need, so no
// separate arc-id space has to be invented.
func buildOrigArcs(topo *cch.Topology, rankGraph *tdgraph.Graph) tdcustomize.EdgeOrigArcs {
	numTopoEdges := uint32(len(topo.Head))
	upward := make([]uint32, numTopoEdges)
	downward := make([]uint32, numTopoEdges)
	for i := range upward {
		upward[i] = tdcustomize.NoArc
		downward[i] = tdcustomize.NoArc
	}

	for u := uint32(0); u < rankGraph.NumNodes; u++ {
		s, e := rankGraph.EdgesFrom(u)
		for arc := s; arc < e; arc++ {
			v := rankGraph.Head[arc]
			switch {
			case u < v:
				if edgeID, ok := topo.FindEdge(u, v); ok && upward[edgeID] == tdcustomize.NoArc {
					upward[edgeID] = arc
				}
			case v < u:
				if edgeID, ok := topo.FindEdge(v, u); ok && downward[edgeID] == tdcustomize.NoArc {
					downward[edgeID] = arc
				}
			}
		}
	}

	return tdcustomize.EdgeOrigArcs{Upward: upward, Downward: downward}
}

// Customize runs the five-phase customizer over t's topology against its
// own rank-space graph (the live/initial weights) and compacts the result
// into the form pkg/tdquery serves from. It's re-run whenever travel
// times change materially — contraction (Contract) is not. parIterThreshold
// overrides the driver's default separator-cell parallelization cutoff
// when positive (see Customizer.SetParIterThreshold); 0 keeps the default.
func Customize(ctx context.Context, t *Topology, parIterThreshold int) (*cch.CustomizedGraph, error) {
	c := tdcustomize.NewCustomizer(t.Topo, t.RankGraph, t.OrigArcs)
	if parIterThreshold > 0 {
		c.SetParIterThreshold(parIterThreshold)
	}
	if err := c.Run(ctx, tdcustomize.FlatCell(t.Topo.NumNodes)); err != nil {
		return nil, fmt.Errorf("preprocess: customize: %w", err)
	}
	return cch.Compact(t.Topo, c.Upward, c.Downward), nil
}
