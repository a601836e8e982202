package api

import (
	"testing"

	"tdcch/pkg/tdgraph"
)

// buildSnapTestGraph returns a 3-node path graph: 0 at (1.0,103.0), 1 at
// (1.001,103.0), 2 at (1.01,103.05) — a short nearby segment and a
// farther one, to give Snap a real nearest-vs-farther choice.
func buildSnapTestGraph(t *testing.T) *tdgraph.Graph {
	t.Helper()
	g := &tdgraph.Graph{
		NumNodes: 3,
		NumEdges: 2,
		FirstOut: []uint32{0, 1, 2, 2},
		Head:     []uint32{1, 2},
		FreeFlow: []uint32{10, 10},
		NodeLat:  []float64{1.0, 1.001, 1.01},
		NodeLon:  []float64{103.0, 103.0, 103.05},
	}
	return g
}

func TestSnapFindsNearestSegment(t *testing.T) {
	g := buildSnapTestGraph(t)
	s := NewSnapper(g)

	res, err := s.Snap(1.0005, 103.0)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if res.NodeU != 0 || res.NodeV != 1 {
		t.Errorf("snapped to (%d,%d), want (0,1)", res.NodeU, res.NodeV)
	}
}

func TestSnapReturnsErrWhenTooFar(t *testing.T) {
	g := buildSnapTestGraph(t)
	s := NewSnapper(g)

	if _, err := s.Snap(10.0, 110.0); err != ErrPointTooFar {
		t.Errorf("got err = %v, want ErrPointTooFar", err)
	}
}

func TestSnapResultNodePicksCloserEndpoint(t *testing.T) {
	r := SnapResult{NodeU: 1, NodeV: 2, Ratio: 0.9}
	if got := r.Node(); got != 2 {
		t.Errorf("Node() = %d, want 2", got)
	}
	r.Ratio = 0.1
	if got := r.Node(); got != 1 {
		t.Errorf("Node() = %d, want 1", got)
	}
}
