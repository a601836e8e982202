package tdfunc

// Switch marks a point in time at which the pointwise-minimum winner
// between two merged functions changes. Used by the shortcut store to
// rebuild the Sources list after a merge (spec.md §4.1.3, §4.2.1).
type Switch struct {
	At    float64
	FWins bool // true if f is the (new) winner starting at At
}

// MergeResult is the pointwise minimum of two PeriodicPLFs together with
// the ordered list of winner switches over one period.
type MergeResult struct {
	Min      PeriodicPLF
	Switches []Switch
}

// Merge computes min(f, g) as a PeriodicPLF, plus the switch list recording
// which input realizes the minimum on each sub-interval. Two functions that
// are fuzzy-equal everywhere produce a single switch list entry (spec.md
// §9 open question: "which function wins when they coincide everywhere" —
// resolved here by preferring f, consistent with Sources.selfBetter in
// DESIGN.md open question 1).
func Merge(f, g PeriodicPLF) MergeResult {
	breaks := combinedBreakpoints(f.Points, g.Points)

	var out []TTFPoint
	var switches []Switch
	var lastWinnerKnown bool
	var lastWinnerIsF bool

	for i := 0; i < len(breaks); i++ {
		t := breaks[i]
		fv := f.Eval(t)
		gv := g.Eval(t)

		isF := fv <= gv
		if FuzzyEq(fv, gv) && lastWinnerKnown {
			isF = lastWinnerIsF
		}

		if i > 0 {
			prev := breaks[i-1]
			if crossed, crossAt, crossVal := crossingBetween(f, g, prev, t); crossed {
				out = appendPoint(out, TTFPoint{At: crossAt, Val: crossVal})
				switches = append(switches, Switch{At: crossAt, FWins: isF})
			}
		}

		val := fv
		if !isF {
			val = gv
		}
		out = appendPoint(out, TTFPoint{At: t, Val: val})

		if !lastWinnerKnown || isF != lastWinnerIsF {
			switches = append(switches, Switch{At: t, FWins: isF})
		}
		lastWinnerKnown = true
		lastWinnerIsF = isF
	}

	if len(out) == 0 {
		out = append(out, TTFPoint{At: 0, Val: f.Points[0].Val})
	}
	if !FuzzyEq(out[0].At, 0) {
		v0 := f.Eval(0)
		if g.Eval(0) < v0 {
			v0 = g.Eval(0)
		}
		out = append([]TTFPoint{{At: 0, Val: v0}}, out...)
	}
	last := out[len(out)-1]
	if !FuzzyEq(last.At, Period) {
		out = append(out, TTFPoint{At: Period, Val: out[0].Val})
	} else {
		out[len(out)-1].Val = out[0].Val
	}

	return MergeResult{Min: NewPeriodicPLF(fifoizeUp(out)), Switches: dedupSwitches(switches)}
}

// combinedBreakpoints returns the sorted, deduplicated union of both
// functions' breakpoint times over [0, Period], always including the
// endpoints.
func combinedBreakpoints(fp, gp []TTFPoint) []float64 {
	seen := make(map[float64]bool, len(fp)+len(gp)+2)
	var out []float64
	add := func(t float64) {
		for _, s := range out {
			if FuzzyEq(s, t) {
				return
			}
		}
		_ = seen
		out = append(out, t)
	}
	add(0)
	for _, p := range fp {
		add(p.At)
	}
	for _, p := range gp {
		add(p.At)
	}
	add(Period)

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// crossingBetween checks whether f and g's linear segments swap order
// strictly inside (a, b), and if so returns the exact intersection point
// via the segment-intersection predicates of spec.md §4.1.5.
func crossingBetween(f, g PeriodicPLF, a, b float64) (bool, float64, float64) {
	fa, fb := f.Eval(a), f.Eval(b)
	ga, gb := g.Eval(a), g.Eval(b)

	da := fa - ga
	db := fb - gb
	if (da > Eps && db > Eps) || (da < -Eps && db < -Eps) || (FuzzyEq(da, 0) || FuzzyEq(db, 0)) {
		return false, 0, 0
	}

	p1 := TTFPoint{At: a, Val: fa}
	p2 := TTFPoint{At: b, Val: fb}
	p3 := TTFPoint{At: a, Val: ga}
	p4 := TTFPoint{At: b, Val: gb}

	if !segmentsIntersect(p1, p2, p3, p4) {
		return false, 0, 0
	}
	ip := segmentIntersection(p1, p2, p3, p4)
	return true, ip.At, ip.Val
}

func dedupSwitches(switches []Switch) []Switch {
	if len(switches) == 0 {
		return switches
	}
	out := switches[:1]
	for _, s := range switches[1:] {
		last := out[len(out)-1]
		if FuzzyEq(last.At, s.At) && last.FWins == s.FWins {
			continue
		}
		if last.FWins == s.FWins {
			continue
		}
		out = append(out, s)
	}
	return out
}
