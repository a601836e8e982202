package tdfunc

// ATTFKind discriminates the two states of an ATTF (spec.md §3 "ATTF").
type ATTFKind int

const (
	Exact ATTFKind = iota
	Approx
)

// ATTF is the approximate travel-time function tagged union: either an
// Exact PLF, or an Approx pair of (lower, upper) bound PLFs used when
// carrying the exact function would be too expensive (spec.md §4.1.4,
// §6 APPROX_THRESHOLD).
type ATTF struct {
	Kind  ATTFKind
	Exact PeriodicPLF
	Lower PeriodicPLF
	Upper PeriodicPLF
}

// NewExactATTF wraps f as an Exact ATTF.
func NewExactATTF(f PeriodicPLF) ATTF { return ATTF{Kind: Exact, Exact: f} }

// NewApproxATTF wraps a (lower, upper) bound pair as an Approx ATTF. Global
// range containment is checked here; a full pointwise lower<=upper check
// happens where it matters, in the shortcut store (spec.md §4.2).
func NewApproxATTF(lower, upper PeriodicPLF) ATTF {
	if lower.LowerBound() > upper.UpperBound()+Eps {
		panic("tdfunc: approx ATTF lower bound exceeds upper bound")
	}
	return ATTF{Kind: Approx, Lower: lower, Upper: upper}
}

// IsExact reports whether this ATTF carries the exact function.
func (a ATTF) IsExact() bool { return a.Kind == Exact }

// StaticLower returns the minimum travel time this ATTF can ever realize.
func (a ATTF) StaticLower() float64 {
	if a.IsExact() {
		return a.Exact.LowerBound()
	}
	return a.Lower.LowerBound()
}

// StaticUpper returns the maximum travel time this ATTF can ever realize.
func (a ATTF) StaticUpper() float64 {
	if a.IsExact() {
		return a.Exact.UpperBound()
	}
	return a.Upper.UpperBound()
}

// LowerPLF returns a PeriodicPLF that never exceeds the true function.
func (a ATTF) LowerPLF() PeriodicPLF {
	if a.IsExact() {
		return a.Exact
	}
	return a.Lower
}

// UpperPLF returns a PeriodicPLF that never falls below the true function.
func (a ATTF) UpperPLF() PeriodicPLF {
	if a.IsExact() {
		return a.Exact
	}
	return a.Upper
}

// Eval evaluates the ATTF at t. For an Approx ATTF this returns the
// midpoint of the bound interval — callers on a hot path that must stay
// sound should use LowerPLF/UpperPLF directly instead (spec.md §4.6.2).
func (a ATTF) Eval(t float64) float64 {
	if a.IsExact() {
		return a.Exact.Eval(t)
	}
	return (a.Lower.Eval(t) + a.Upper.Eval(t)) / 2
}

// Approximate collapses f into an Approx ATTF using ApproximateLower and
// ApproximateUpper with the package default ApproxEps, the policy used by
// the customizer once a cache's point count exceeds ApproxThreshold
// (spec.md §6).
func Approximate(f PeriodicPLF) ATTF {
	return NewApproxATTF(ApproximateLower(f, ApproxEps), ApproximateUpper(f, ApproxEps))
}

// LinkATTF composes two ATTFs the way Link composes two PeriodicPLFs. If
// either side is approximate, the result is approximate: its lower bound
// is Link(lower,lower) and its upper bound is Link(upper,upper), which are
// themselves valid bounds because Link is monotone in both arguments
// (spec.md §4.1.2 corollary used throughout §4.2.1's source combining).
func LinkATTF(f, g ATTF) ATTF {
	if f.IsExact() && g.IsExact() {
		return NewExactATTF(Link(f.Exact, g.Exact))
	}
	return NewApproxATTF(Link(f.LowerPLF(), g.LowerPLF()), Link(f.UpperPLF(), g.UpperPLF()))
}

// MergeATTF computes the pointwise minimum of two ATTFs. If both are
// exact, the result is exact and the winner switch list is returned;
// otherwise the result is an Approx ATTF over the merged bounds and no
// switch list is produced; given an empty switch list, the shortcut
// store (cch.combineSources) keeps the shortcut's existing Sources
// unchanged.
func MergeATTF(f, g ATTF) (ATTF, []Switch) {
	if f.IsExact() && g.IsExact() {
		res := Merge(f.Exact, g.Exact)
		return NewExactATTF(res.Min), res.Switches
	}
	lo := Merge(f.LowerPLF(), g.LowerPLF()).Min
	hi := Merge(f.UpperPLF(), g.UpperPLF()).Min
	return NewApproxATTF(lo, hi), nil
}
