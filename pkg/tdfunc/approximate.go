package tdfunc

// approxBias selects which direction an approximation is allowed to err:
// a Lower approximation may only underestimate the original function, an
// Upper approximation may only overestimate it, matching spec.md §4.1.4's
// bound-preserving requirement for shortcut caches.
type approxBias int

const (
	biasLower approxBias = iota
	biasUpper
	biasNone // unbiased: plain Douglas-Peucker, used for exact-bound diagnostics only
)

// ApproximateLower returns a PeriodicPLF that never exceeds f and
// deviates from it by no more than eps, built by recursive Douglas-Peucker
// simplification biased to only move points down.
func ApproximateLower(f PeriodicPLF, eps float64) PeriodicPLF {
	return douglasPeucker(f, eps, biasLower)
}

// ApproximateUpper returns a PeriodicPLF that never falls below f and
// deviates from it by no more than eps, biased to only move points up.
func ApproximateUpper(f PeriodicPLF, eps float64) PeriodicPLF {
	return douglasPeucker(f, eps, biasUpper)
}

func douglasPeucker(f PeriodicPLF, eps float64, bias approxBias) PeriodicPLF {
	if len(f.Points) <= 2 {
		return f
	}
	kept := dpRecurse(f.Points, 0, len(f.Points)-1, eps, bias)
	pts := make([]TTFPoint, 0, len(kept))
	for _, i := range kept {
		pts = appendPoint(pts, f.Points[i])
	}
	switch bias {
	case biasLower:
		pts = fifoizeDown(pts)
	case biasUpper:
		pts = fifoizeUp(pts)
	}
	return NewPeriodicPLF(pts)
}

// dpRecurse returns the sorted indices into pts that survive simplification
// of pts[lo..hi], always keeping lo and hi. The single farthest point (by
// perpendicular deviation, signed per bias) beyond eps is kept and the
// interval recurses on both sides — the classic Douglas-Peucker structure,
// adapted so a biased deviation of the wrong sign never triggers a keep
// (spec.md §4.1.4: the approximation must stay strictly on one side).
func dpRecurse(pts []TTFPoint, lo, hi int, eps float64, bias approxBias) []int {
	if hi <= lo+1 {
		return []int{lo, hi}
	}

	p, q := pts[lo], pts[hi]
	maxViolation := 0.0
	violationIdx := -1
	maxDev := -1.0
	devIdx := -1
	for i := lo + 1; i < hi; i++ {
		dev := signedDeviation(p, q, pts[i], bias)
		if dev < -Eps && -dev > maxViolation {
			// The chord would cross to the wrong side of pts[i]: keeping
			// this point is mandatory, not merely eps-driven.
			maxViolation = -dev
			violationIdx = i
		}
		if dev > maxDev {
			maxDev = dev
			devIdx = i
		}
	}

	maxIdx := violationIdx
	if maxIdx == -1 {
		maxIdx = devIdx
		if maxIdx == -1 || maxDev <= eps {
			return []int{lo, hi}
		}
	}

	left := dpRecurse(pts, lo, maxIdx, eps, bias)
	right := dpRecurse(pts, maxIdx, hi, eps, bias)
	return append(left[:len(left)-1], right...)
}

// signedDeviation returns how far pts[i] lies from the chord (p,q) in the
// direction the given bias cares about: for biasLower, how far i is ABOVE
// the chord (since dropping it would move the approximation down, past
// it, which is only safe if that drop stays within eps of the true value
// at that time — tracked by the caller as the recursion depth shrinks);
// for biasUpper, the mirror. biasNone returns the unsigned deviation.
func signedDeviation(p, q, r TTFPoint, bias approxBias) float64 {
	onChord := interpolateLinear(p, q, r.At)
	d := r.Val - onChord
	switch bias {
	case biasLower:
		return d
	case biasUpper:
		return -d
	default:
		if d < 0 {
			return -d
		}
		return d
	}
}

// fifoizeDown mirrors fifoizeUp but sweeps right to left, lowering a
// point's value to the maximum permitted by its FIFO-successor — the
// counterpart pass for lower-biased approximations (spec.md §4.1.4).
func fifoizeDown(points []TTFPoint) []TTFPoint {
	for i := len(points) - 2; i >= 0; i-- {
		maxVal := points[i+1].Val + (points[i+1].At - points[i].At)
		if points[i].Val > maxVal {
			points[i].Val = maxVal
		}
	}
	return points
}
