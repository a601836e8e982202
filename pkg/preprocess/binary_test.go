package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"tdcch/pkg/tdcustomize"
)

func TestTopologyBinaryRoundTrip(t *testing.T) {
	g := buildTriangleGraph()
	topo := Contract(g)

	path := filepath.Join(t.TempDir(), "topo.bin")
	if err := WriteTopology(path, topo); err != nil {
		t.Fatalf("WriteTopology: %v", err)
	}

	got, err := ReadTopology(path)
	if err != nil {
		t.Fatalf("ReadTopology: %v", err)
	}

	if got.Topo.NumNodes != topo.Topo.NumNodes {
		t.Errorf("NumNodes = %d, want %d", got.Topo.NumNodes, topo.Topo.NumNodes)
	}
	if len(got.Topo.Head) != len(topo.Topo.Head) {
		t.Fatalf("NumArcs = %d, want %d", len(got.Topo.Head), len(topo.Topo.Head))
	}
	for i := range got.Topo.Head {
		if got.Topo.Head[i] != topo.Topo.Head[i] || got.Topo.Tail[i] != topo.Topo.Tail[i] {
			t.Errorf("edge %d = (%d,%d), want (%d,%d)", i, got.Topo.Tail[i], got.Topo.Head[i], topo.Topo.Tail[i], topo.Topo.Head[i])
		}
	}
	if len(got.OrigArcs.Upward) != len(topo.OrigArcs.Upward) {
		t.Fatalf("len(Upward) = %d, want %d", len(got.OrigArcs.Upward), len(topo.OrigArcs.Upward))
	}
	for i, a := range topo.OrigArcs.Upward {
		if got.OrigArcs.Upward[i] != a {
			t.Errorf("Upward[%d] = %d, want %d", i, got.OrigArcs.Upward[i], a)
		}
	}
}

func TestReadTopologyBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	if err := os.WriteFile(path, []byte("not a topology file at all, padded out"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadTopology(path); err == nil {
		t.Error("expected error for bad magic bytes")
	}
}

func TestReadTopologyMissing(t *testing.T) {
	if _, err := ReadTopology(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadTopologyUsesNoArcSentinel(t *testing.T) {
	g := buildTriangleGraph()
	topo := Contract(g)
	path := filepath.Join(t.TempDir(), "topo.bin")
	if err := WriteTopology(path, topo); err != nil {
		t.Fatalf("WriteTopology: %v", err)
	}
	got, err := ReadTopology(path)
	if err != nil {
		t.Fatalf("ReadTopology: %v", err)
	}
	// Every Downward entry, NoArc sentinels included, must come back as written.
	if len(got.OrigArcs.Downward) != len(topo.OrigArcs.Downward) {
		t.Fatalf("len(Downward) = %d, want %d", len(got.OrigArcs.Downward), len(topo.OrigArcs.Downward))
	}
	for i, a := range topo.OrigArcs.Downward {
		if got.OrigArcs.Downward[i] != a {
			t.Errorf("Downward[%d] = %d, want %d (NoArc = %d)", i, got.OrigArcs.Downward[i], a, tdcustomize.NoArc)
		}
	}
}
