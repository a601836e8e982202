// Package tdlive implements the optional live overlay (spec.md §4.8): a
// per-edge LiveShortcut that overrides the predicted Shortcut's travel
// time within a bounded near-future window, re-customized by the same
// separator-parallel driver the predicted customization uses, restricted
// to a live interval instead of the full period.
package tdlive

import (
	"math"

	"tdcch/pkg/cch"
)

// LiveShortcut is one CCH edge's live-overlay state: scalar bounds plus an
// optional live window during which those bounds reflect currently known
// traffic rather than the predicted function. Unlike cch.Shortcut, a
// LiveShortcut never carries a PLF cache — a live reading is itself only
// ever a scalar bound pair (spec.md §4.8), so the merge below works
// entirely on bounds.
type LiveShortcut struct {
	Lower, Upper float64
	LiveUntil    *float64 // nil: no live data covers this edge
	Unpack       *float64 // nil: unpacking never needs to reach past LiveUntil
	Source       cch.ShortcutSource
	Required     bool
}

// NewFromPredicted seeds a LiveShortcut from the predicted customization's
// Shortcut, carrying no live data until a feed update or triangle merge
// gives it one.
func NewFromPredicted(sc *cch.Shortcut) *LiveShortcut {
	src := cch.NoneSource
	if len(sc.Sources) > 0 {
		src = sc.Sources[0].Src
	}
	return &LiveShortcut{
		Lower:    sc.LowerBound,
		Upper:    sc.UpperBound,
		Source:   src,
		Required: sc.Required,
	}
}

// HasLiveData reports whether this edge's bounds currently reflect live
// traffic rather than the static prediction.
func (s *LiveShortcut) HasLiveData() bool { return s.LiveUntil != nil }

// ApplyLiveReading overwrites this edge's bounds with a live reading valid
// until liveUntil, sourced from a single original arc — a live reading
// always originates at an original road arc, never synthesized directly
// for a shortcut (spec.md §4.8).
func (s *LiveShortcut) ApplyLiveReading(arc uint32, lower, upper, liveUntil float64) {
	s.Lower = lower
	s.Upper = upper
	s.Source = cch.OriginalEdgeSource(arc)
	s.LiveUntil = &liveUntil
	s.Unpack = nil
}

// ExpireBefore drops any live data whose window has already closed by t
// (the live horizon has advanced past it), reverting the edge to wait for
// its next triangle merge or feed update — grounded on
// original_source/.../td_traffic_pots.rs's handling of a moving live
// horizon, without porting its potential-function machinery (out of this
// package's scalar-bound scope).
func (s *LiveShortcut) ExpireBefore(t float64) {
	if s.LiveUntil != nil && *s.LiveUntil <= t {
		s.LiveUntil = nil
		s.Unpack = nil
	}
}

// DeriveLiveUntil implements spec.md §4.8's merged live-window formula:
// max(live_until(down), live_until(up) - lower(down)). Pessimistic by
// construction (DESIGN.md decision): if either operand carries no live
// data, the merged edge claims none either, rather than guessing how far a
// partially-live path's guarantee extends.
func DeriveLiveUntil(down, up *LiveShortcut) (float64, bool) {
	if down.LiveUntil == nil || up.LiveUntil == nil {
		return 0, false
	}
	return math.Max(*down.LiveUntil, *up.LiveUntil-down.Lower), true
}

// Merge relaxes s against one lower triangle (downRef, upRef) / (down, up),
// restricted to whichever candidate currently dominates — the scalar-only
// analogue of cch.Shortcut.Merge that spec.md §4.8 calls "identical to
// §4.2 but restricted to the live interval".
func (s *LiveShortcut) Merge(downRef, upRef cch.EdgeRef, down, up *LiveShortcut) {
	if !s.Required {
		return
	}
	triangleLower := down.Lower + up.Lower
	if triangleLower > s.Upper {
		return // triangle can never beat s, not even optimistically
	}
	triangleUpper := down.Upper + up.Upper
	if triangleUpper <= s.Lower {
		// Triangle dominates outright: replace.
		s.Lower, s.Upper = triangleLower, triangleUpper
		s.Source = cch.ShortcutPairSource(downRef, upRef)
		if until, ok := DeriveLiveUntil(down, up); ok {
			s.LiveUntil = &until
		} else {
			s.LiveUntil = nil
		}
		return
	}
	// Ambiguous overlap: tighten the upper bound conservatively but make no
	// live-window claim, since neither candidate is provably the winner.
	if triangleUpper < s.Upper {
		s.Upper = triangleUpper
	}
}
