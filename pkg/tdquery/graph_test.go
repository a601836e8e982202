package tdquery

import (
	"context"
	"math"
	"testing"

	"tdcch/pkg/cch"
	"tdcch/pkg/tdcustomize"
	"tdcch/pkg/tdfunc"
)

const testPeriod = 100.0

func withTestPeriod(t *testing.T) {
	t.Helper()
	old := tdfunc.Period
	tdfunc.Period = testPeriod
	t.Cleanup(func() { tdfunc.Period = old })
}

// constantGraph is an OriginalGraph whose arcs all have a fixed scalar
// travel time, keyed by arc id, mirroring pkg/tdcustomize's test fixture.
type constantGraph struct {
	weights map[uint32]float64
}

func (g constantGraph) TravelTimeFunction(arc uint32) tdfunc.ATTF {
	return tdfunc.NewExactATTF(tdfunc.Constant(g.weights[arc]))
}

// buildTriangleQuery customizes the 0->1, 0->2, 1->2 triangle (same shape
// as pkg/tdcustomize's triangleTopology) with edge(1,2)'s direct cost (20)
// dominated by its 1->0->2 triangle alternative (5+3=8), then compacts and
// wraps the result for querying. Node 2 has no outgoing topology edges at
// all (it's the highest-ranked node), so every query that reaches it does
// so only by ascending.
func buildTriangleQuery(t *testing.T) (*Graph, constantGraph) {
	t.Helper()
	topo := cch.BuildTopology(3, []cch.Edge{
		{From: 0, To: 1},
		{From: 0, To: 2},
		{From: 1, To: 2},
	})
	// arc0: 0->1 forward = 5. arc1: 0->2 forward = 3. arc2: 1->2 forward
	// (direct, dominated) = 20. arc3: 1->0 reverse of edge0 = 5.
	g := constantGraph{weights: map[uint32]float64{0: 5, 1: 3, 2: 20, 3: 5}}
	origArcs := tdcustomize.EdgeOrigArcs{
		Upward:   []uint32{0, 1, 2},
		Downward: []uint32{3, tdcustomize.NoArc, tdcustomize.NoArc},
	}
	c := tdcustomize.NewCustomizer(topo, g, origArcs)
	if err := c.Run(context.Background(), tdcustomize.FlatCell(topo.NumNodes)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	compacted := cch.Compact(topo, c.Upward, c.Downward)
	return NewGraph(compacted, g), g
}

func TestPointQueryUnpacksShortcutTriangle(t *testing.T) {
	withTestPeriod(t)
	qg, _ := buildTriangleQuery(t)

	res, err := PointQuery(qg, 1, 2, 0)
	if err != nil {
		t.Fatalf("PointQuery: %v", err)
	}
	if math.Abs(res.ArrivalTime-8) > tdfunc.Eps {
		t.Fatalf("arrival = %v, want 8 (5 down to 0, then 3 up to 2)", res.ArrivalTime)
	}
	want := []uint32{3, 1}
	if len(res.Arcs) != len(want) {
		t.Fatalf("arcs = %v, want %v", res.Arcs, want)
	}
	for i := range want {
		if res.Arcs[i] != want[i] {
			t.Fatalf("arcs = %v, want %v", res.Arcs, want)
		}
	}
}

func TestPointQueryPrefersDirectEdgeOverDominatedTriangle(t *testing.T) {
	withTestPeriod(t)
	qg, _ := buildTriangleQuery(t)

	// 0->2 has its own cheap direct arc (3); nothing about node 1 or the
	// (1,2) shortcut should factor into this query at all.
	res, err := PointQuery(qg, 0, 2, 0)
	if err != nil {
		t.Fatalf("PointQuery: %v", err)
	}
	if math.Abs(res.ArrivalTime-3) > tdfunc.Eps {
		t.Fatalf("arrival = %v, want 3 (direct 0->2 arc)", res.ArrivalTime)
	}
	if len(res.Arcs) != 1 || res.Arcs[0] != 1 {
		t.Fatalf("arcs = %v, want [1]", res.Arcs)
	}
}

func TestProfileQueryReconstructsConstantTriangleTTF(t *testing.T) {
	withTestPeriod(t)
	qg, _ := buildTriangleQuery(t)

	res, err := ProfileQuery(qg, 1, 2, 0, 50)
	if err != nil {
		t.Fatalf("ProfileQuery: %v", err)
	}
	if !res.Exact {
		t.Fatal("every leg is an exact constant function, result should be exact")
	}
	for _, sample := range []float64{0, 10, 49.999} {
		if got := res.Lower.Eval(sample); math.Abs(got-8) > tdfunc.Eps {
			t.Fatalf("Lower.Eval(%v) = %v, want 8", sample, got)
		}
	}
	want := []uint32{3, 1}
	if len(res.Arcs) != len(want) {
		t.Fatalf("arcs = %v, want %v", res.Arcs, want)
	}
	for i := range want {
		if res.Arcs[i] != want[i] {
			t.Fatalf("arcs = %v, want %v", res.Arcs, want)
		}
	}
}

func TestPointQueryReturnsErrNoRouteWhenUnreachable(t *testing.T) {
	withTestPeriod(t)
	qg, _ := buildTriangleQuery(t)

	// Node 2 has no outgoing edges in either half-graph, so nothing is
	// reachable from it.
	if _, err := PointQuery(qg, 2, 0, 0); err != ErrNoRoute {
		t.Fatalf("PointQuery from a sink node: got err=%v, want ErrNoRoute", err)
	}
}
