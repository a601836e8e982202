package tdfunc

import (
	"math"
	"testing"
)

func withPeriod(t *testing.T, period float64, fn func()) {
	t.Helper()
	old := Period
	Period = period
	defer func() { Period = old }()
	fn()
}

func TestConstantEval(t *testing.T) {
	withPeriod(t, 100, func() {
		f := Constant(42)
		for _, tm := range []float64{0, 17, 99, 250} {
			if got := f.Eval(tm); !FuzzyEq(got, 42) {
				t.Errorf("Eval(%v) = %v, want 42", tm, got)
			}
		}
	})
}

func TestPeriodicEvalInterpolates(t *testing.T) {
	withPeriod(t, 100, func() {
		f := NewPeriodicPLF([]TTFPoint{
			{At: 0, Val: 10},
			{At: 50, Val: 20},
			{At: 100, Val: 10},
		})
		cases := []struct {
			t    float64
			want float64
		}{
			{0, 10},
			{25, 15},
			{50, 20},
			{75, 15},
			{100, 10},
			{150, 20}, // wraps to offset 50
		}
		for _, c := range cases {
			if got := f.Eval(c.t); !FuzzyEq(got, c.want) {
				t.Errorf("Eval(%v) = %v, want %v", c.t, got, c.want)
			}
		}
	})
}

func TestNewPeriodicPLFRejectsNonWrapping(t *testing.T) {
	withPeriod(t, 100, func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic for non-wrapping PLF")
			}
		}()
		NewPeriodicPLF([]TTFPoint{{At: 0, Val: 10}, {At: 100, Val: 20}})
	})
}

func TestNewPeriodicPLFRejectsFIFOViolation(t *testing.T) {
	withPeriod(t, 100, func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic for FIFO violation")
			}
		}()
		// Dropping 1000 in 10 time units violates no-overtaking.
		NewPeriodicPLF([]TTFPoint{
			{At: 0, Val: 1000},
			{At: 10, Val: 0},
			{At: 100, Val: 1000},
		})
	})
}

func TestLinkIsArriveThenDepart(t *testing.T) {
	withPeriod(t, 100, func() {
		f := Constant(10)
		g := Constant(5)
		h := Link(f, g)
		for _, tm := range []float64{0, 30, 70} {
			if got := h.Eval(tm); !FuzzyEq(got, 15) {
				t.Errorf("Link(const,const).Eval(%v) = %v, want 15", tm, got)
			}
		}
	})
}

func TestLinkPicksUpStepInG(t *testing.T) {
	withPeriod(t, 100, func() {
		f := Constant(10)
		// g has a sharp rise just before t=50, so departing at t=30 (which
		// arrives at g at t=40) evaluates on the flat part before the rise.
		g := NewPeriodicPLF([]TTFPoint{
			{At: 0, Val: 5},
			{At: 49.999, Val: 5},
			{At: 50, Val: 45},
			{At: 100, Val: 5},
		})
		h := Link(f, g)
		// Departing at 30 arrives at g at 40, before the rise: val = 10+5=15.
		if got := h.Eval(30); !FuzzyEq(got, 15) {
			t.Errorf("Link.Eval(30) = %v, want 15", got)
		}
	})
}

// TestLinkAcrossPeriodWrapStaysExact covers the case where a link's
// shifted window [arrive(p), arrive(q)) crosses the period boundary
// (common once travel times push t+f(t) past Period): the composed
// result must still equal the exact arrive-then-depart formula at every
// sample, not just at f's own breakpoints, even though the g-breakpoints
// needing the post-wrap day land at smaller raw .At values than the ones
// needing the pre-wrap day.
func TestLinkAcrossPeriodWrapStaysExact(t *testing.T) {
	withPeriod(t, 100, func() {
		f := NewPeriodicPLF([]TTFPoint{{At: 0, Val: 50}, {At: 100, Val: 50}})
		g := NewPeriodicPLF([]TTFPoint{
			{At: 0, Val: 5},
			{At: 20, Val: 45},
			{At: 50, Val: 20},
			{At: 100, Val: 5},
		})
		h := Link(f, g)

		for tm := 0.0; tm < 100; tm += 2.5 {
			want := f.Eval(tm) + g.Eval(tm+f.Eval(tm))
			got := h.Eval(tm)
			if !FuzzyEq(got, want) {
				t.Fatalf("h.Eval(%v) = %v, want %v (arrive-then-depart)", tm, got, want)
			}
		}

		pts := h.Points
		for i := 1; i < len(pts); i++ {
			if !FuzzyLt(pts[i-1].At, pts[i].At) {
				t.Fatalf("Link output breakpoints must be strictly increasing in .At, got %+v", pts)
			}
		}
	})
}

func TestMergeIsPointwiseMinimum(t *testing.T) {
	withPeriod(t, 100, func() {
		f := NewPeriodicPLF([]TTFPoint{{At: 0, Val: 10}, {At: 100, Val: 10}})
		g := NewPeriodicPLF([]TTFPoint{{At: 0, Val: 20}, {At: 50, Val: 0}, {At: 100, Val: 20}})
		res := Merge(f, g)
		for _, tm := range []float64{0, 10, 25, 40, 50, 60, 75, 90, 100} {
			want := math.Min(f.Eval(tm), g.Eval(tm))
			if got := res.Min.Eval(tm); !FuzzyEq(got, want) {
				t.Errorf("Merge.Eval(%v) = %v, want %v", tm, got, want)
			}
		}
		if len(res.Switches) == 0 {
			t.Error("expected at least one winner switch for crossing functions")
		}
	})
}

func TestMergeOfIdenticalFunctionsHasNoCrossing(t *testing.T) {
	withPeriod(t, 100, func() {
		f := NewPeriodicPLF([]TTFPoint{{At: 0, Val: 10}, {At: 50, Val: 30}, {At: 100, Val: 10}})
		res := Merge(f, f)
		for _, tm := range []float64{0, 25, 50, 75, 100} {
			if got := res.Min.Eval(tm); !FuzzyEq(got, f.Eval(tm)) {
				t.Errorf("Merge(f,f).Eval(%v) = %v, want %v", tm, got, f.Eval(tm))
			}
		}
	})
}

func TestApproximateLowerNeverExceedsOriginal(t *testing.T) {
	withPeriod(t, 100, func() {
		f := NewPeriodicPLF([]TTFPoint{
			{At: 0, Val: 10},
			{At: 20, Val: 15},
			{At: 40, Val: 12},
			{At: 60, Val: 25},
			{At: 80, Val: 18},
			{At: 100, Val: 10},
		})
		approx := ApproximateLower(f, 0.5)
		for tm := 0.0; tm <= 100; tm += 2 {
			if approx.Eval(tm) > f.Eval(tm)+Eps {
				t.Errorf("lower approx at %v = %v exceeds original %v", tm, approx.Eval(tm), f.Eval(tm))
			}
		}
	})
}

func TestApproximateUpperNeverBelowOriginal(t *testing.T) {
	withPeriod(t, 100, func() {
		f := NewPeriodicPLF([]TTFPoint{
			{At: 0, Val: 10},
			{At: 20, Val: 15},
			{At: 40, Val: 12},
			{At: 60, Val: 25},
			{At: 80, Val: 18},
			{At: 100, Val: 10},
		})
		approx := ApproximateUpper(f, 0.5)
		for tm := 0.0; tm <= 100; tm += 2 {
			if approx.Eval(tm) < f.Eval(tm)-Eps {
				t.Errorf("upper approx at %v = %v below original %v", tm, approx.Eval(tm), f.Eval(tm))
			}
		}
	})
}

func TestATTFLinkBoundsAreMonotone(t *testing.T) {
	withPeriod(t, 100, func() {
		fLo := Constant(5)
		fHi := Constant(10)
		gLo := Constant(3)
		gHi := Constant(6)

		a := NewApproxATTF(fLo, fHi)
		b := NewApproxATTF(gLo, gHi)
		linked := LinkATTF(a, b)
		if linked.IsExact() {
			t.Fatal("linking two approx ATTFs must stay approx")
		}
		if got := linked.StaticLower(); !FuzzyEq(got, 8) {
			t.Errorf("linked lower = %v, want 8", got)
		}
		if got := linked.StaticUpper(); !FuzzyEq(got, 16) {
			t.Errorf("linked upper = %v, want 16", got)
		}
	})
}

func TestMergeATTFExactStaysExact(t *testing.T) {
	withPeriod(t, 100, func() {
		a := NewExactATTF(Constant(5))
		b := NewExactATTF(Constant(3))
		merged, switches := MergeATTF(a, b)
		if !merged.IsExact() {
			t.Fatal("merging two exact ATTFs must stay exact")
		}
		if got := merged.Eval(0); !FuzzyEq(got, 3) {
			t.Errorf("merged.Eval(0) = %v, want 3", got)
		}
		_ = switches
	})
}

func TestSplitOfPeriod(t *testing.T) {
	withPeriod(t, 100, func() {
		cases := []struct {
			t        float64
			wantDay  int64
			wantOff  float64
		}{
			{0, 0, 0},
			{50, 0, 50},
			{100, 1, 0},
			{150, 1, 50},
			{-50, -1, 50},
		}
		for _, c := range cases {
			day, off := SplitOfPeriod(c.t)
			if day != c.wantDay || !FuzzyEq(off, c.wantOff) {
				t.Errorf("SplitOfPeriod(%v) = (%v,%v), want (%v,%v)", c.t, day, off, c.wantDay, c.wantOff)
			}
		}
	})
}
