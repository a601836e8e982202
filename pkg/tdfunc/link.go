package tdfunc

import "sort"

// Link composes f then g: Link(f,g)(t) = g(t+f(t)) + f(t), the "arrive then
// depart" rule of spec.md §4.1.2. Both inputs are periodic; the result is
// periodic over the same Period.
//
// The implementation sweeps f's breakpoints left to right; at each one it
// evaluates g at the shifted arrival time and, when the arrival crosses one
// of g's own breakpoints between two consecutive f-breakpoints, inserts the
// corresponding extra point so the result stays piecewise-linear (not just
// piecewise-linear-sampled-at-f's-breakpoints).
func Link(f, g PeriodicPLF) PeriodicPLF {
	var out []TTFPoint
	fp := f.Points
	for i := 0; i < len(fp); i++ {
		t := fp[i].At
		arrive := t + fp[i].Val
		out = appendPoint(out, TTFPoint{At: t, Val: linkEval(fp[i].Val, g, arrive)})

		if i+1 < len(fp) {
			nextArrive := fp[i+1].At + fp[i+1].Val
			insertGBreaksBetween(&out, fp[i], fp[i+1], arrive, nextArrive, g)
		}
	}
	return NewPeriodicPLF(fifoizeUp(out))
}

func linkEval(fVal float64, g PeriodicPLF, arrive float64) float64 {
	return fVal + g.Eval(arrive)
}

// insertGBreaksBetween walks g's breakpoints whose periodic image falls
// strictly between the arrival times produced by consecutive f-breakpoints
// p and q, inserting a linearly-interpolated (departure-time, link-value)
// point for each — this keeps Link exact rather than merely sampling g at
// f's own breakpoints.
//
// Candidates are collected across all of g's breakpoints and every period
// shift k first, then sorted by their absolute arrival time cand before
// being emitted. depTime is an increasing function of cand (frac grows
// monotonically with cand since arriveP < arriveQ), so sorting by cand
// also sorts by depTime. This matters once the shifted window [arriveP,
// arriveQ) wraps the period boundary: the post-wrap candidates (k=dayP+1)
// have smaller raw .At values than the pre-wrap ones (k=dayP) despite
// occurring later in the window, so emitting in g.Points/k iteration order
// would produce departure times out of chronological order.
func insertGBreaksBetween(out *[]TTFPoint, p, q TTFPoint, arriveP, arriveQ float64, g PeriodicPLF) {
	if !FuzzyLt(arriveP, arriveQ) {
		return
	}
	dayP, _ := SplitOfPeriod(arriveP)
	span := arriveQ - arriveP

	type candidate struct {
		cand float64
		frac float64
	}
	var cands []candidate
	for _, gp := range g.Points {
		for k := int64(-1); k <= int64(span/Period)+1; k++ {
			cand := float64(dayP+k)*Period + gp.At
			if FuzzyLeq(cand, arriveP) || FuzzyLeq(arriveQ, cand) {
				continue
			}
			cands = append(cands, candidate{cand: cand, frac: (cand - arriveP) / (arriveQ - arriveP)})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].cand < cands[j].cand })

	for _, c := range cands {
		depTime := p.At + c.frac*(q.At-p.At)
		val := linkEval(p.Val+c.frac*(q.Val-p.Val), g, c.cand)
		*out = appendPoint(*out, TTFPoint{At: depTime, Val: val})
	}
}

// fifoizeUp repairs small FIFO violations introduced by floating point
// error during linking/merging by raising a point's value to the minimum
// required by its FIFO-predecessor, mirroring the reference's
// `fifoize_up` post-pass (spec.md §4.1.4).
func fifoizeUp(points []TTFPoint) []TTFPoint {
	for i := 1; i < len(points); i++ {
		minVal := points[i-1].Val - (points[i].At - points[i-1].At)
		if points[i].Val < minVal {
			points[i].Val = minVal
		}
	}
	return points
}
