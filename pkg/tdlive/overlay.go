package tdlive

import (
	"context"

	"tdcch/pkg/cch"
	"tdcch/pkg/tdcustomize"
)

// Overlay is the live-customization state for one CCH topology: one
// LiveShortcut per predicted upward/downward edge, re-customized against
// the same lower triangles the predicted customizer used (spec.md §4.8).
type Overlay struct {
	Topo     *cch.Topology
	Upward   []*LiveShortcut
	Downward []*LiveShortcut
	TLive    float64 // the current live horizon: t_live
}

// NewOverlay seeds an Overlay from a finished predicted customization,
// with no edge carrying live data yet.
func NewOverlay(topo *cch.Topology, upward, downward []*cch.Shortcut) *Overlay {
	o := &Overlay{
		Topo:     topo,
		Upward:   make([]*LiveShortcut, len(upward)),
		Downward: make([]*LiveShortcut, len(downward)),
	}
	for i, sc := range upward {
		o.Upward[i] = NewFromPredicted(sc)
	}
	for i, sc := range downward {
		o.Downward[i] = NewFromPredicted(sc)
	}
	return o
}

func (o *Overlay) half(side cch.EdgeSide) []*LiveShortcut {
	if side == cch.Upward {
		return o.Upward
	}
	return o.Downward
}

// ApplyReadings installs a batch of live readings fetched from a LiveFeed
// (keyed by the original road arc id each reading describes) onto every
// CCH edge whose own required Shortcut is a single original-edge source
// for that arc — the only edges a live reading can ever land on directly;
// everything else only gains live data by being re-customized below.
func (o *Overlay) ApplyReadings(side cch.EdgeSide, readings map[uint32]LiveReading) {
	for _, sc := range o.half(side) {
		if sc.Source.Kind != cch.SourceOriginalEdge {
			continue
		}
		if r, ok := readings[sc.Source.ArcID]; ok {
			sc.ApplyLiveReading(sc.Source.ArcID, r.Lower, r.Upper, r.LiveUntil)
		}
	}
}

// ExpireBefore advances the live horizon to t and drops any edge's live
// data whose window has already closed.
func (o *Overlay) ExpireBefore(t float64) {
	o.TLive = t
	for _, sc := range o.Upward {
		sc.ExpireBefore(t)
	}
	for _, sc := range o.Downward {
		sc.ExpireBefore(t)
	}
}

// Recustomize re-derives every required edge's live bounds from its lower
// triangles, using the same separator-parallel driver the predicted
// customizer runs (spec.md §4.8's "runs the normal customization [...]
// then overlays a per-edge LiveShortcut"). Cheap relative to a full
// customization run: no PLF work, just the scalar triangle merge of
// LiveShortcut.Merge.
func Recustomize(ctx context.Context, o *Overlay, root *tdcustomize.Cell) error {
	d := tdcustomize.NewDriver(o.Topo)
	return d.Run(ctx, root, func(v uint32) {
		s, e := o.Topo.FirstOut[v], o.Topo.FirstOut[v+1]
		d.EdgeRange(s, e, func(edgeIdx uint32) {
			w := o.Topo.Head[edgeIdx]
			o.Topo.LowerTrianglesForEdge(v, w, func(downID, upID uint32) {
				downRef := cch.EdgeRef{Side: cch.Downward, Index: downID}
				upRef := cch.EdgeRef{Side: cch.Upward, Index: upID}
				o.Upward[edgeIdx].Merge(downRef, upRef, o.Downward[downID], o.Upward[upID])
				o.Downward[edgeIdx].Merge(cch.EdgeRef{Side: cch.Downward, Index: upID}, cch.EdgeRef{Side: cch.Upward, Index: downID}, o.Downward[upID], o.Upward[downID])
			})
		})
	})
}

// EvalAt returns the edge's travel-time bounds for a departure at t: the
// LiveShortcut's own lower and upper bounds (it carries no PLF to
// evaluate exactly) while t falls inside the live window, the predicted
// bounds passed in otherwise. lowerPredicted/upperPredicted let
// the caller pass in whatever predicted-customization bound it already
// has on hand (this package has no access to the predicted Shortcut
// store's PLF cache, only its finalized bounds).
func (o *Overlay) EvalAt(side cch.EdgeSide, edge uint32, t, lowerPredicted, upperPredicted float64) (lower, upper float64) {
	sc := o.half(side)[edge]
	if sc.LiveUntil != nil && t < *sc.LiveUntil {
		return sc.Lower, sc.Upper
	}
	return lowerPredicted, upperPredicted
}

// LiveReading is one arc's current travel-time bounds as reported by a
// LiveFeed, valid until LiveUntil.
type LiveReading struct {
	Lower, Upper, LiveUntil float64
}
