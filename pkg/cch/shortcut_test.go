package cch

import (
	"math"
	"testing"

	"tdcch/pkg/tdfunc"
)

// fakeGraph is a minimal GraphAccessor backed by plain maps, enough to
// drive Shortcut.Merge in isolation without the rest of the overlay.
type fakeGraph struct {
	shortcuts map[EdgeRef]*Shortcut
	original  map[uint32]tdfunc.ATTF
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{shortcuts: map[EdgeRef]*Shortcut{}, original: map[uint32]tdfunc.ATTF{}}
}

func (g *fakeGraph) Lower(e EdgeRef) float64      { return g.shortcuts[e].LowerBound }
func (g *fakeGraph) Upper(e EdgeRef) float64      { return g.shortcuts[e].UpperBound }
func (g *fakeGraph) IsValidPath(e EdgeRef) bool   { return g.shortcuts[e].Sources.IsValidPath() }
func (g *fakeGraph) TTF(e EdgeRef) tdfunc.ATTF    { return g.shortcuts[e].TravelTimeFunction(g) }
func (g *fakeGraph) OriginalTTF(arc uint32) tdfunc.ATTF { return g.original[arc] }

func withTestPeriod(t *testing.T, period float64, fn func()) {
	t.Helper()
	old := tdfunc.Period
	tdfunc.Period = period
	defer func() { tdfunc.Period = old }()
	fn()
}

// TestMergeDirectDominatesTriangle models spec.md Scenario C: a direct
// edge with a tight travel time dominates a triangle path whose bounds
// are strictly worse.
func TestMergeDirectDominatesTriangle(t *testing.T) {
	withTestPeriod(t, 100, func() {
		g := newFakeGraph()
		down := EdgeRef{Side: Downward, Index: 0}
		up := EdgeRef{Side: Upward, Index: 1}

		g.shortcuts[down] = NewOriginalEdgeShortcut(100, 4, 4)
		g.original[100] = tdfunc.NewExactATTF(tdfunc.Constant(4))
		g.shortcuts[up] = NewOriginalEdgeShortcut(101, 6, 6)
		g.original[101] = tdfunc.NewExactATTF(tdfunc.Constant(6))

		direct := NewOriginalEdgeShortcut(200, 5, 6)
		g.original[200] = tdfunc.NewExactATTF(tdfunc.Constant(5))
		direct.Merge(down, up, g)

		if !direct.Required {
			t.Fatal("direct shortcut should remain required")
		}
		if len(direct.Sources) != 1 || direct.Sources[0].Src.Kind != SourceOriginalEdge {
			t.Fatalf("expected direct edge to keep its original-edge source, got %+v", direct.Sources)
		}
		if got := direct.TravelTimeFunction(g).Eval(0); !tdfunc.FuzzyEq(got, 5) {
			t.Errorf("direct TTF eval = %v, want 5", got)
		}
	})
}

// TestMergeTriangleReplacesWorseDirect models the mirror of Scenario C:
// when the triangle always beats the direct edge, the shortcut adopts the
// triangle as its sole source.
func TestMergeTriangleReplacesWorseDirect(t *testing.T) {
	withTestPeriod(t, 100, func() {
		g := newFakeGraph()
		down := EdgeRef{Side: Downward, Index: 0}
		up := EdgeRef{Side: Upward, Index: 1}

		g.shortcuts[down] = NewOriginalEdgeShortcut(100, 1, 1)
		g.original[100] = tdfunc.NewExactATTF(tdfunc.Constant(1))
		g.shortcuts[up] = NewOriginalEdgeShortcut(101, 1, 1)
		g.original[101] = tdfunc.NewExactATTF(tdfunc.Constant(1))

		direct := NewOriginalEdgeShortcut(200, 50, 50)
		g.original[200] = tdfunc.NewExactATTF(tdfunc.Constant(50))
		direct.Merge(down, up, g)

		if direct.Sources[0].Src.Kind != SourceShortcutPair {
			t.Fatalf("expected direct to be replaced by the triangle, got %+v", direct.Sources)
		}
		if got := direct.TravelTimeFunction(g).Eval(0); !tdfunc.FuzzyEq(got, 2) {
			t.Errorf("triangle TTF eval = %v, want 2", got)
		}
	})
}

// TestMergeProducesTimeDependentSwitch models spec.md Scenario D: direct
// and via-v functions cross twice per period, so the resulting Sources
// must alternate between the two origins.
func TestMergeProducesTimeDependentSwitch(t *testing.T) {
	withTestPeriod(t, 100, func() {
		g := newFakeGraph()
		down := EdgeRef{Side: Downward, Index: 0}
		up := EdgeRef{Side: Upward, Index: 1}

		viaV := tdfunc.NewPeriodicPLF([]tdfunc.TTFPoint{
			{At: 0, Val: 8}, {At: 50, Val: 18}, {At: 100, Val: 8},
		})
		g.shortcuts[down] = &Shortcut{
			Sources:    Sources{{At: 0, Src: OriginalEdgeSource(100)}},
			Cache:      ptrATTF(tdfunc.NewExactATTF(tdfunc.Constant(0))),
			LowerBound: 8, UpperBound: 18, Required: true,
		}
		g.shortcuts[up] = &Shortcut{
			Sources:    Sources{{At: 0, Src: OriginalEdgeSource(101)}},
			Cache:      ptrATTF(tdfunc.NewExactATTF(viaV)),
			LowerBound: 8, UpperBound: 18, Required: true,
		}

		direct := &Shortcut{
			Sources: Sources{{At: 0, Src: OriginalEdgeSource(200)}},
			Cache: ptrATTF(tdfunc.NewExactATTF(tdfunc.NewPeriodicPLF([]tdfunc.TTFPoint{
				{At: 0, Val: 20}, {At: 50, Val: 5}, {At: 100, Val: 20},
			}))),
			LowerBound: 5, UpperBound: 20, Required: true,
		}
		direct.Merge(down, up, g)

		if len(direct.Sources) < 2 {
			t.Fatalf("expected a time-dependent switch, got %d source intervals: %+v", len(direct.Sources), direct.Sources)
		}
		if direct.Sources[0].At != 0 {
			t.Fatalf("Sources must start at t=0, got %v", direct.Sources[0].At)
		}
		for i := 1; i < len(direct.Sources); i++ {
			if direct.Sources[i].At <= direct.Sources[i-1].At {
				t.Fatalf("Sources times must be strictly increasing: %+v", direct.Sources)
			}
		}
	})
}

func TestFinalizeBoundsDropsEmptyShortcut(t *testing.T) {
	s := NewUnreachableShortcut()
	s.FinalizeBounds()
	if s.Required {
		t.Error("unreachable shortcut must not be required")
	}
	if !math.IsInf(s.LowerBound, 1) || !math.IsInf(s.UpperBound, 1) {
		t.Error("unreachable shortcut must have infinite bounds")
	}
}

func TestFinalizeBoundsDisablesCrossedBounds(t *testing.T) {
	s := NewOriginalEdgeShortcut(1, 10, 10)
	s.LowerBound = 20 // simulate a later tightening pass crossing upper
	s.FinalizeBounds()
	if s.Required {
		t.Error("shortcut with crossed bounds must become not-required")
	}
}

func ptrATTF(a tdfunc.ATTF) *tdfunc.ATTF { return &a }

// TestCombineSourcesPreservesInteriorBreakpoints guards against dropping
// an old Sources breakpoint that falls strictly inside a self-winning
// run spanning more than one of the old shortcut's own intervals: self
// should keep contributing A on [0,30) and B on [30,50), not have A
// silently absorb B's interval.
func TestCombineSourcesPreservesInteriorBreakpoints(t *testing.T) {
	withTestPeriod(t, 100, func() {
		a := OriginalEdgeSource(1)
		b := OriginalEdgeSource(2)
		c := OriginalEdgeSource(3)
		other := OriginalEdgeSource(999)

		old := Sources{{At: 0, Src: a}, {At: 30, Src: b}, {At: 60, Src: c}}
		switches := []tdfunc.Switch{{At: 0, FWins: true}, {At: 50, FWins: false}}

		got := combineSources(old, switches, other)
		want := Sources{{At: 0, Src: a}, {At: 30, Src: b}, {At: 50, Src: other}}

		if len(got) != len(want) {
			t.Fatalf("combineSources = %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("combineSources[%d] = %+v, want %+v (full: got=%+v want=%+v)", i, got[i], want[i], got, want)
			}
		}
	})
}

// TestCombineSourcesMultipleSwitchesBackToSelf exercises a self-win run
// that reopens after the other operand wins for a while, making sure the
// old breakpoints inside the *second* self-winning run are also kept.
func TestCombineSourcesMultipleSwitchesBackToSelf(t *testing.T) {
	withTestPeriod(t, 100, func() {
		a := OriginalEdgeSource(1)
		b := OriginalEdgeSource(2)
		other := OriginalEdgeSource(999)

		old := Sources{{At: 0, Src: a}, {At: 20, Src: b}}
		switches := []tdfunc.Switch{
			{At: 0, FWins: true},
			{At: 10, FWins: false},
			{At: 40, FWins: true},
		}

		got := combineSources(old, switches, other)
		want := Sources{{At: 0, Src: a}, {At: 10, Src: other}, {At: 40, Src: b}}

		if len(got) != len(want) {
			t.Fatalf("combineSources = %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("combineSources[%d] = %+v, want %+v (full: got=%+v want=%+v)", i, got[i], want[i], got, want)
			}
		}
	})
}
