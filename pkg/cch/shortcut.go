// Package cch implements the customizable-contraction-hierarchy overlay
// that the time-dependent customizer writes into and the query servers
// read from: the per-edge Shortcut store (shortcut sources, cache, bounds)
// and the overlay topology (CSR arrays, elimination tree, lower-triangle
// enumeration).
package cch

import (
	"math"
	"sort"

	"tdcch/pkg/tdfunc"
)

// EdgeSide distinguishes the upward and downward half-graphs of the
// overlay.
type EdgeSide uint8

const (
	Upward EdgeSide = iota
	Downward
)

// EdgeRef names one directed CCH edge by half-graph and index into that
// half-graph's edge array.
type EdgeRef struct {
	Side  EdgeSide
	Index uint32
}

// SourceKind discriminates ShortcutSource's three cases.
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceOriginalEdge
	SourceShortcutPair
)

// ShortcutSource is the tagged union: a real road arc, a lower-triangle
// pair of sub-shortcuts, or None (+infinity on its interval).
type ShortcutSource struct {
	Kind     SourceKind
	ArcID    uint32  // valid when Kind == SourceOriginalEdge
	DownEdge EdgeRef // valid when Kind == SourceShortcutPair
	UpEdge   EdgeRef
}

// OriginalEdgeSource builds a ShortcutSource referencing a real road arc.
func OriginalEdgeSource(arc uint32) ShortcutSource {
	return ShortcutSource{Kind: SourceOriginalEdge, ArcID: arc}
}

// ShortcutPairSource builds a ShortcutSource referencing a lower-triangle
// pair (down then up) over some middle node.
func ShortcutPairSource(down, up EdgeRef) ShortcutSource {
	return ShortcutSource{Kind: SourceShortcutPair, DownEdge: down, UpEdge: up}
}

// NoneSource represents +infinity: no path realizes this shortcut.
var NoneSource = ShortcutSource{Kind: SourceNone}

// SourceInterval is one breakpoint of a Sources list: Src is valid on
// [At, next.At) with wraparound at the period.
type SourceInterval struct {
	At  float64
	Src ShortcutSource
}

// Sources is the per-shortcut, time-partitioned list of which underlying
// path realizes the shortcut on each sub-interval of [0,T).
type Sources []SourceInterval

// IsValidPath reports whether this Sources list represents a usable path
// anywhere (i.e. is not the single None interval).
func (s Sources) IsValidPath() bool {
	return !(len(s) == 1 && s[0].Src.Kind == SourceNone)
}

// At returns the source interval covering time t.
func (s Sources) At(t float64) ShortcutSource {
	_, offset := tdfunc.SplitOfPeriod(t)
	i := 0
	for j := 1; j < len(s); j++ {
		if s[j].At > offset+tdfunc.Eps {
			break
		}
		i = j
	}
	return s[i].Src
}

// Shortcut is one directed CCH edge's customization state.
type Shortcut struct {
	Sources    Sources
	Cache      *tdfunc.ATTF
	LowerBound float64
	UpperBound float64
	Required   bool
	Constant   bool
}

// NewUnreachableShortcut builds the +infinity shortcut every CCH edge
// starts as before the respecting/main-customization phases populate it.
// Required starts true: every topology edge is a merge candidate until
// FinalizeBounds or post-customization's required-propagation pass proves
// otherwise (spec.md §4.2.3, §4.5.5) — only then does it become false.
func NewUnreachableShortcut() *Shortcut {
	return &Shortcut{
		Sources:    Sources{{At: 0, Src: NoneSource}},
		LowerBound: math.Inf(1),
		UpperBound: math.Inf(1),
		Required:   true,
	}
}

// NewOriginalEdgeShortcut builds the Shortcut the respecting phase assigns
// to a CCH edge that coincides with a real road arc.
func NewOriginalEdgeShortcut(arc uint32, lower, upper float64) *Shortcut {
	return &Shortcut{
		Sources:    Sources{{At: 0, Src: OriginalEdgeSource(arc)}},
		LowerBound: lower,
		UpperBound: upper,
		Required:   true,
		Constant:   tdfunc.FuzzyEq(lower, upper),
	}
}

// GraphAccessor is the minimal read surface Shortcut.Merge needs into the
// surrounding customization state: bounds and travel-time functions of
// other CCH edges and of original arcs.
type GraphAccessor interface {
	Lower(e EdgeRef) float64
	Upper(e EdgeRef) float64
	IsValidPath(e EdgeRef) bool
	TTF(e EdgeRef) tdfunc.ATTF
	OriginalTTF(arc uint32) tdfunc.ATTF
}

// TravelTimeFunction returns this shortcut's ATTF: the cache if present,
// or — for the trivial single-original-edge case — the original arc's
// TTF directly. Any other Sources shape without a cache is an invariant
// violation (the customizer guarantees a cache exists whenever one is
// needed).
func (s *Shortcut) TravelTimeFunction(g GraphAccessor) tdfunc.ATTF {
	if s.Cache != nil {
		return *s.Cache
	}
	if len(s.Sources) == 1 && s.Sources[0].Src.Kind == SourceOriginalEdge {
		return g.OriginalTTF(s.Sources[0].Src.ArcID)
	}
	panic("cch: shortcut has no cache and is not a single original edge")
}

// ClearPLF discards the cached exact/approximate function, keeping only
// scalar bounds and Sources. Called once a node's incident edges are
// fully customized (§4.5.4); this is the customizer's main memory saving.
func (s *Shortcut) ClearPLF() { s.Cache = nil }

// maybeApproximate collapses an oversized exact cache down to an Approx
// ATTF once its point count passes ApproxThreshold.
func (s *Shortcut) maybeApproximate() {
	if s.Cache == nil || !s.Cache.IsExact() {
		return
	}
	if len(s.Cache.Exact.Points) > tdfunc.ApproxThreshold {
		a := tdfunc.Approximate(s.Cache.Exact)
		s.Cache = &a
	}
}

// Merge relaxes this shortcut via one lower triangle (down, up): the
// Shortcut.merge algorithm of spec.md §4.2, steps 1-10.
func (s *Shortcut) Merge(down, up EdgeRef, g GraphAccessor) {
	if !s.Required {
		return
	}
	if !g.IsValidPath(down) || !g.IsValidPath(up) {
		return
	}

	triangleLower := g.Lower(down) + g.Lower(up)
	if tdfunc.FuzzyLt(s.UpperBound, triangleLower) {
		return
	}

	first := g.TTF(down)
	second := g.TTF(up)
	linked := tdfunc.LinkATTF(first, second)

	if !s.Sources.IsValidPath() {
		s.Sources = Sources{{At: 0, Src: ShortcutPairSource(down, up)}}
		s.Cache = &linked
		s.UpperBound = math.Min(s.UpperBound, linked.StaticUpper())
		s.maybeApproximate()
		return
	}

	selfTTF := s.TravelTimeFunction(g)

	if tdfunc.FuzzyLeq(linked.StaticUpper(), selfTTF.StaticLower()) {
		s.Sources = Sources{{At: 0, Src: ShortcutPairSource(down, up)}}
		s.Cache = &linked
		s.UpperBound = math.Min(s.UpperBound, linked.StaticUpper())
		s.maybeApproximate()
		return
	}

	if tdfunc.FuzzyLt(s.UpperBound, linked.StaticLower()) {
		return
	}

	merged, switches := tdfunc.MergeATTF(selfTTF, linked)
	s.UpperBound = math.Min(s.UpperBound, merged.StaticUpper())
	s.Cache = &merged
	s.Sources = combineSources(s.Sources, switches, ShortcutPairSource(down, up))
	s.maybeApproximate()
}

// combineSources implements §4.2.1: walk the old Sources and the switch
// list in parallel, copying old-source breakpoints where self won and
// inserting the new source where the other operand won. Re-emitting old's
// own interior breakpoints (not just sampling old.At at each switch
// boundary) matters whenever a self-winning run spans more than one of
// old's own breakpoints, or this would silently drop the segments between
// them and widen the first segment's claimed interval past where it
// actually won.
func combineSources(old Sources, switches []tdfunc.Switch, other ShortcutSource) Sources {
	if len(switches) == 0 {
		return old
	}
	// Open question decision (DESIGN.md #1): a single switch with self
	// winning everywhere keeps the old Sources unchanged.
	if len(switches) == 1 && switches[0].FWins {
		return old
	}

	type event struct {
		at       float64
		isSwitch bool
		fWins    bool
		src      ShortcutSource
	}
	events := make([]event, 0, len(old)+len(switches))
	for _, sw := range switches {
		events = append(events, event{at: sw.At, isSwitch: true, fWins: sw.FWins})
	}
	for _, o := range old {
		events = append(events, event{at: o.At, src: o.Src})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		// At a tie, the switch boundary decides the winner before an old
		// breakpoint at the same instant is considered against it.
		return events[i].isSwitch && !events[j].isSwitch
	})

	var out Sources
	selfWins := false
	emit := func(at float64, src ShortcutSource) {
		if len(out) > 0 && out[len(out)-1].Src == src {
			return
		}
		out = append(out, SourceInterval{At: at, Src: src})
	}
	for _, e := range events {
		if e.isSwitch {
			selfWins = e.fWins
			if selfWins {
				emit(e.at, old.At(e.at))
			} else {
				emit(e.at, other)
			}
			continue
		}
		if !selfWins {
			continue
		}
		emit(e.at, e.src)
	}
	return out
}

// FinalizeBounds implements §4.2.3: tighten scalar bounds against the
// cache, or collapse the edge to +infinity/not-required if Sources is
// empty or the bounds have crossed.
func (s *Shortcut) FinalizeBounds() {
	if !s.Sources.IsValidPath() {
		s.Required = false
		s.LowerBound = math.Inf(1)
		s.UpperBound = math.Inf(1)
		s.Constant = false
		return
	}
	if s.Cache != nil {
		s.LowerBound = math.Max(s.LowerBound, s.Cache.StaticLower())
		s.UpperBound = math.Min(s.UpperBound, s.Cache.StaticUpper())
	}
	if tdfunc.FuzzyLt(s.UpperBound, s.LowerBound) {
		s.Required = false
		s.LowerBound = math.Inf(1)
		s.UpperBound = math.Inf(1)
		return
	}
	s.Constant = tdfunc.FuzzyEq(s.LowerBound, s.UpperBound)
}
