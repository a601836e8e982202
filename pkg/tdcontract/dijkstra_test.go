package tdcontract

import "testing"

func TestDijkstraFindsShortestPathAcrossGrid(t *testing.T) {
	g := buildTestGraph()
	dist, path, ok := Dijkstra(g, 0, 5)
	if !ok {
		t.Fatal("expected a path from 0 to 5")
	}
	// 0-1-2-5 = 100+200+400 = 700, vs 0-3-4-5 = 300+500+600 = 1400.
	if dist != 700 {
		t.Fatalf("dist = %d, want 700", dist)
	}
	want := []uint32{0, 1, 2, 5}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestDijkstraReturnsNotOkWhenUnreachable(t *testing.T) {
	g := &Graph{
		NumNodes: 2,
		FirstOut: []uint32{0, 0, 0},
	}
	if _, _, ok := Dijkstra(g, 0, 1); ok {
		t.Fatal("expected no path between two isolated nodes")
	}
}

func TestDijkstraZeroDistanceToSelf(t *testing.T) {
	g := buildTestGraph()
	dist, path, ok := Dijkstra(g, 2, 2)
	if !ok {
		t.Fatal("expected trivial path from a node to itself")
	}
	if dist != 0 || len(path) != 1 || path[0] != 2 {
		t.Fatalf("dist=%d path=%v, want dist=0 path=[2]", dist, path)
	}
}
