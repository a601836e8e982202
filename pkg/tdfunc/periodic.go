package tdfunc

import "sort"

// PeriodicPLF is a periodic piecewise-linear function over [0, Period]:
// first point at 0, last point at Period, with first.Val == last.Val (the
// wrap). See spec.md §3 "PeriodicPLF".
type PeriodicPLF struct {
	Points []TTFPoint
}

// NewPeriodicPLF validates and wraps points as a PeriodicPLF. It panics if
// the §3 invariants are violated — these are construction-time bugs in the
// caller, never a recoverable query-time condition (spec.md §7).
func NewPeriodicPLF(points []TTFPoint) PeriodicPLF {
	if len(points) == 0 {
		panic("tdfunc: empty PLF")
	}
	if !FuzzyEq(points[0].At, 0) {
		panic("tdfunc: PeriodicPLF must start at t=0")
	}
	if len(points) > 1 && !FuzzyEq(points[len(points)-1].At, Period) {
		panic("tdfunc: PeriodicPLF must end at t=Period")
	}
	if !FuzzyEq(points[0].Val, points[len(points)-1].Val) {
		panic("tdfunc: PeriodicPLF must wrap: first.Val == last.Val")
	}
	for i := 1; i < len(points); i++ {
		if !FuzzyLt(points[i-1].At, points[i].At) {
			panic("tdfunc: PeriodicPLF breakpoints must be strictly increasing")
		}
		if FuzzyLt(points[i].Val-points[i-1].Val, -(points[i].At - points[i-1].At)) {
			panic("tdfunc: PeriodicPLF violates FIFO")
		}
	}
	return PeriodicPLF{Points: points}
}

// Constant builds the degenerate one-point PeriodicPLF with value v
// everywhere — the travel-time function of a static (non-time-dependent)
// arc.
func Constant(v float64) PeriodicPLF {
	return PeriodicPLF{Points: []TTFPoint{{At: 0, Val: v}}}
}

// Eval returns f(t), reducing t modulo Period first (spec.md §4.1.1).
func (f PeriodicPLF) Eval(t float64) float64 {
	_, offset := SplitOfPeriod(t)
	return f.asPartial().evalAt(offset)
}

// LowerBound returns min_t f(t).
func (f PeriodicPLF) LowerBound() float64 {
	m := f.Points[0].Val
	for _, p := range f.Points[1:] {
		if p.Val < m {
			m = p.Val
		}
	}
	return m
}

// UpperBound returns max_t f(t).
func (f PeriodicPLF) UpperBound() float64 {
	m := f.Points[0].Val
	for _, p := range f.Points[1:] {
		if p.Val > m {
			m = p.Val
		}
	}
	return m
}

func (f PeriodicPLF) asPartial() PartialPLF { return PartialPLF{Points: f.Points} }

// PartialPLF is a piecewise-linear function over an arbitrary [t0, t1],
// not wrapping. Used for truncated segments during link/merge recursion
// (spec.md §3 "PartialPLF").
type PartialPLF struct {
	Points []TTFPoint
}

// NewPartialPLF validates and wraps points as a PartialPLF.
func NewPartialPLF(points []TTFPoint) PartialPLF {
	if len(points) == 0 {
		panic("tdfunc: empty PLF")
	}
	for i := 1; i < len(points); i++ {
		if !FuzzyLt(points[i-1].At, points[i].At) {
			panic("tdfunc: PartialPLF breakpoints must be strictly increasing")
		}
		if FuzzyLt(points[i].Val-points[i-1].Val, -(points[i].At - points[i-1].At)) {
			panic("tdfunc: PartialPLF violates FIFO")
		}
	}
	return PartialPLF{Points: points}
}

// Eval returns f(t) for t in [Points[0].At, Points[len-1].At].
func (f PartialPLF) Eval(t float64) float64 { return f.evalAt(t) }

func (f PartialPLF) evalAt(t float64) float64 {
	pts := f.Points
	if len(pts) == 1 {
		return pts[0].Val
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].At >= t-Eps })
	if i >= len(pts) {
		return pts[len(pts)-1].Val
	}
	if FuzzyEq(pts[i].At, t) {
		return pts[i].Val
	}
	if i == 0 {
		return pts[0].Val
	}
	return interpolateLinear(pts[i-1], pts[i], t)
}

// LowerBound returns min_t f(t) over this partial's domain.
func (f PartialPLF) LowerBound() float64 {
	m := f.Points[0].Val
	for _, p := range f.Points[1:] {
		if p.Val < m {
			m = p.Val
		}
	}
	return m
}

// UpperBound returns max_t f(t) over this partial's domain.
func (f PartialPLF) UpperBound() float64 {
	m := f.Points[0].Val
	for _, p := range f.Points[1:] {
		if p.Val > m {
			m = p.Val
		}
	}
	return m
}

// SubPLF restricts f to [start, end], interpolating at the boundaries if
// necessary. Mirrors the reference's `sub_plf`.
func (f PartialPLF) SubPLF(start, end float64) PartialPLF {
	pts := f.Points
	if len(pts) == 1 {
		return f
	}
	lo := sort.Search(len(pts), func(i int) bool { return pts[i].At >= start-Eps })
	if lo > 0 && !FuzzyEq(pts[lo].At, start) {
		lo--
	}
	hi := sort.Search(len(pts), func(i int) bool { return pts[i].At >= end-Eps })
	if hi >= len(pts) {
		hi = len(pts) - 1
	}

	out := make([]TTFPoint, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, pts[i])
	}
	if !FuzzyEq(out[0].At, start) {
		v := interpolateLinear(pts[lo], pts[lo+1], start)
		out[0] = TTFPoint{At: start, Val: v}
	}
	if !FuzzyEq(out[len(out)-1].At, end) {
		v := interpolateLinear(pts[hi], pts[min(hi+1, len(pts)-1)], end)
		out = append(out, TTFPoint{At: end, Val: v})
	}
	return PartialPLF{Points: out}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// AppendRange appends the portion of f covering [start, end] onto target,
// which may already hold points; implements the three-case overlap
// handling of spec.md §4.1.6: empty target (copy), target ends strictly
// before start (copy), target reaches into [start,end] (pop the last
// point, interpolate a switchover point, then copy the remainder).
// Duplicate points are suppressed by appendPoint.
func AppendRange(target []TTFPoint, f PeriodicPLF, start, end float64) []TTFPoint {
	part := f.asPartial().SubPLF(start, end)
	return appendOverlap(target, part.Points, start)
}

func appendOverlap(target []TTFPoint, src []TTFPoint, start float64) []TTFPoint {
	if len(target) == 0 {
		return append(target, src...)
	}

	last := target[len(target)-1]
	if FuzzyLt(last.At, start) {
		// Target ends strictly before start: nothing to reconcile.
		for _, p := range src {
			target = appendPoint(target, p)
		}
		return target
	}

	// Target reaches into [start, end]: pop and splice a switchover point.
	target = target[:len(target)-1]
	var switchVal float64
	if len(target) == 0 {
		switchVal = last.Val
	} else {
		switchVal = interpolateLinear(target[len(target)-1], last, start)
	}
	target = appendPoint(target, TTFPoint{At: start, Val: switchVal})
	for _, p := range src {
		if FuzzyLeq(p.At, start) {
			continue
		}
		target = appendPoint(target, p)
	}
	return target
}
