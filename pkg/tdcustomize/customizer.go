package tdcustomize

import (
	"context"
	"math"
	"sync"

	"tdcch/pkg/cch"
	"tdcch/pkg/tdfunc"
)

// NoArc marks a CCH edge that coincides with no original road arc.
const NoArc = ^uint32(0)

// OriginalGraph is the time-dependent road graph the respecting phase
// reads original arc travel-time functions from (spec.md §6, "input to
// customization").
type OriginalGraph interface {
	TravelTimeFunction(arc uint32) tdfunc.ATTF
}

// EdgeOrigArcs maps each CCH edge, in each direction, to the original arc
// it coincides with, or NoArc for a pure shortcut edge with no direct
// road counterpart. This is the cch_edge_to_orig_arc collaborator of
// spec.md §4.3/§6; building it is part of the CCH construction this
// package treats as external input.
type EdgeOrigArcs struct {
	Upward   []uint32
	Downward []uint32
}

// Customizer runs the five phases of spec.md §4.5 over a CCH topology,
// populating one Shortcut per directed CCH edge.
type Customizer struct {
	Topo     *cch.Topology
	Original OriginalGraph
	OrigArcs EdgeOrigArcs

	driver *Driver

	// perfectMu guards concurrent relaxBounds writes during
	// PerfectCustomizeBounds: unlike the other phases, whose target edge
	// is always one of the currently-processed node's own out-edges (and
	// therefore falls in that node's exclusive CSR range), an upper
	// triangle's target edge (w,t) belongs to w's range, not v's — so two
	// different nodes sharing common upward neighbors w,t, processed in
	// two concurrently running separator cells, can race on the same
	// Shortcut. The other phases need no such lock; see their doc
	// comments for why their target edges are cell-exclusive.
	perfectMu sync.Mutex

	Upward   []*cch.Shortcut
	Downward []*cch.Shortcut
}

// NewCustomizer allocates a Customizer and its per-edge Shortcut arrays,
// every entry starting as the +infinity unreachable shortcut (respecting
// then populates the ones with a real original arc).
func NewCustomizer(topo *cch.Topology, g OriginalGraph, origArcs EdgeOrigArcs) *Customizer {
	m := len(topo.Head)
	c := &Customizer{
		Topo:     topo,
		Original: g,
		OrigArcs: origArcs,
		driver:   NewDriver(topo),
		Upward:   make([]*cch.Shortcut, m),
		Downward: make([]*cch.Shortcut, m),
	}
	for i := 0; i < m; i++ {
		c.Upward[i] = cch.NewUnreachableShortcut()
		c.Downward[i] = cch.NewUnreachableShortcut()
	}
	return c
}

// cch.GraphAccessor implementation: Shortcut.Merge reads bounds and TTFs
// of other CCH edges and of original arcs entirely through this surface.

func (c *Customizer) sideSlice(side cch.EdgeSide) []*cch.Shortcut {
	if side == cch.Upward {
		return c.Upward
	}
	return c.Downward
}

func (c *Customizer) Lower(e cch.EdgeRef) float64 { return c.sideSlice(e.Side)[e.Index].LowerBound }
func (c *Customizer) Upper(e cch.EdgeRef) float64 { return c.sideSlice(e.Side)[e.Index].UpperBound }
func (c *Customizer) IsValidPath(e cch.EdgeRef) bool {
	return c.sideSlice(e.Side)[e.Index].Sources.IsValidPath()
}
func (c *Customizer) TTF(e cch.EdgeRef) tdfunc.ATTF {
	return c.sideSlice(e.Side)[e.Index].TravelTimeFunction(c)
}
func (c *Customizer) OriginalTTF(arc uint32) tdfunc.ATTF { return c.Original.TravelTimeFunction(arc) }

// Respect is phase 1 (spec.md §4.5.1): every CCH edge that coincides with
// a real road arc gets that arc's travel-time function as its initial
// Shortcut; edges with no original counterpart stay at +infinity until
// the main customization phase fills them in via triangles.
func (c *Customizer) Respect() {
	c.driver.EdgeRange(0, uint32(len(c.Topo.Head)), func(e uint32) {
		if arc := c.OrigArcs.Upward[e]; arc != NoArc {
			ttf := c.Original.TravelTimeFunction(arc)
			c.Upward[e] = cch.NewOriginalEdgeShortcut(arc, ttf.StaticLower(), ttf.StaticUpper())
			c.Upward[e].Cache = &ttf
		}
		if arc := c.OrigArcs.Downward[e]; arc != NoArc {
			ttf := c.Original.TravelTimeFunction(arc)
			c.Downward[e] = cch.NewOriginalEdgeShortcut(arc, ttf.StaticLower(), ttf.StaticUpper())
			c.Downward[e].Cache = &ttf
		}
	})
}

// relaxBounds tightens sc's scalar bounds against one lower-triangle
// candidate path, the scalar-only analogue of Shortcut.Merge used by the
// pre- and perfect-customization phases (spec.md §4.5.2, §4.5.3).
func relaxBounds(sc *cch.Shortcut, down, up cch.EdgeRef, g cch.GraphAccessor) {
	if !g.IsValidPath(down) || !g.IsValidPath(up) {
		return
	}
	lo := g.Lower(down) + g.Lower(up)
	hi := g.Upper(down) + g.Upper(up)
	if lo < sc.LowerBound {
		sc.LowerBound = lo
	}
	if hi < sc.UpperBound {
		sc.UpperBound = hi
	}
}

// PreCustomizeBounds is phase 2 (spec.md §4.5.2): tighten every edge's
// scalar bounds against its lower triangles, running over the separator
// tree so disjoint cells proceed in parallel. Every triangle relaxes one
// of the currently-processed node v's own out-edges, which the CSR layout
// places exclusively in v's FirstOut range — no other node's goroutine
// ever targets the same edge, so this phase needs no locking.
func (c *Customizer) PreCustomizeBounds(ctx context.Context, root *Cell) error {
	return c.driver.Run(ctx, root, func(v uint32) {
		s, e := c.Topo.FirstOut[v], c.Topo.FirstOut[v+1]
		c.driver.EdgeRange(s, e, func(edgeIdx uint32) {
			w := c.Topo.Head[edgeIdx]
			c.Topo.LowerTrianglesForEdge(v, w, func(down, up uint32) {
				relaxBounds(c.Upward[edgeIdx], cch.EdgeRef{Side: cch.Downward, Index: down}, cch.EdgeRef{Side: cch.Upward, Index: up}, c)
				relaxBounds(c.Downward[edgeIdx], cch.EdgeRef{Side: cch.Upward, Index: up}, cch.EdgeRef{Side: cch.Downward, Index: down}, c)
			})
		})
	})
}

// PerfectCustomizeBounds is phase 3 (spec.md §4.5.3): for every node v,
// relax the bounds of the edge directly connecting two of v's upward
// neighbors via the down-then-up path through v (an upper triangle). The
// target edge (w,t) belongs to w's CSR range, not v's, so two different
// low-rank nodes sharing common upward neighbors can race on the same
// edge when their separator cells run concurrently; perfectMu serializes
// those writes (this phase is cheap scalar arithmetic, so a single
// coarse-grained lock costs little next to the parallelism it gives up).
func (c *Customizer) PerfectCustomizeBounds(ctx context.Context, root *Cell) error {
	return c.driver.Run(ctx, root, func(v uint32) {
		c.Topo.UpperTrianglesAt(v, func(edgeVW, edgeVT, edgeWT uint32, forward bool) {
			down := cch.EdgeRef{Side: cch.Downward, Index: edgeVW}
			up := cch.EdgeRef{Side: cch.Upward, Index: edgeVT}
			revDown := cch.EdgeRef{Side: cch.Downward, Index: edgeVT}
			revUp := cch.EdgeRef{Side: cch.Upward, Index: edgeVW}
			c.perfectMu.Lock()
			defer c.perfectMu.Unlock()
			if forward {
				relaxBounds(c.Upward[edgeWT], down, up, c)
				relaxBounds(c.Downward[edgeWT], revDown, revUp, c)
			} else {
				relaxBounds(c.Downward[edgeWT], down, up, c)
				relaxBounds(c.Upward[edgeWT], revDown, revUp, c)
			}
		})
	})
}

// CustomizePLFs is phase 4 (spec.md §4.5.4): the main PLF customization.
// For every node v in rank order, every incident upward edge (v,w) is
// merged against each of v's lower triangles; once v's own edges are
// done, the incoming edges into v (Inverted[v]) can never be referenced
// as a triangle operand again — every triangle that uses one has tail
// strictly less than v, so those have all already run by the time v's
// cell finishes — and their cached PLFs are dropped.
func (c *Customizer) CustomizePLFs(ctx context.Context, root *Cell) error {
	return c.driver.Run(ctx, root, func(v uint32) {
		s, e := c.Topo.FirstOut[v], c.Topo.FirstOut[v+1]
		c.driver.EdgeRange(s, e, func(edgeIdx uint32) {
			w := c.Topo.Head[edgeIdx]
			c.Topo.LowerTrianglesForEdge(v, w, func(down, up uint32) {
				// v->w via v->u (down, reversed) then u->w (up, forward).
				c.Upward[edgeIdx].Merge(cch.EdgeRef{Side: cch.Downward, Index: down}, cch.EdgeRef{Side: cch.Upward, Index: up}, c)
				// w->v via w->u (up, reversed) then u->v (down, forward).
				c.Downward[edgeIdx].Merge(cch.EdgeRef{Side: cch.Downward, Index: up}, cch.EdgeRef{Side: cch.Upward, Index: down}, c)
			})
		})
		for _, inv := range c.Topo.Inverted[v] {
			c.Upward[inv.Edge].ClearPLF()
			c.Downward[inv.Edge].ClearPLF()
		}
	})
}

// PostCustomize is phase 5 (spec.md §4.5.5): re-run perfect bound
// customization now that the PLFs are final, finalize every shortcut's
// scalar bounds against its cache, then run the forward (disable) and
// reverse (re-enable) required-propagation passes, finishing by pinning
// the bounds of every edge that ends up not required to +infinity so
// bounds-pruning at query time automatically ignores it.
func (c *Customizer) PostCustomize(ctx context.Context, root *Cell) error {
	if err := c.PerfectCustomizeBounds(ctx, root); err != nil {
		return err
	}
	for _, sc := range c.Upward {
		sc.FinalizeBounds()
	}
	for _, sc := range c.Downward {
		sc.FinalizeBounds()
	}
	c.disableUnnecessary()
	c.reenableRequired()
	c.clampUnrequiredBounds()
	return nil
}

// disableUnnecessary is the forward pass of §4.5.5: walk CCH edges
// tail-ascending (every source reference has a strictly smaller tail than
// the edge it composes, so a source edge's own required status is
// already final by the time the edge composed from it is inspected) and
// marks a shortcut not required when none of its sources are themselves
// required.
func (c *Customizer) disableUnnecessary() {
	for v := uint32(0); v < c.Topo.NumNodes; v++ {
		s, e := c.Topo.FirstOut[v], c.Topo.FirstOut[v+1]
		for edgeIdx := s; edgeIdx < e; edgeIdx++ {
			c.disableUnnecessaryOne(c.Upward[edgeIdx])
			c.disableUnnecessaryOne(c.Downward[edgeIdx])
		}
	}
}

// disableUnnecessaryOne clears Required when none of sc's own sources are
// required: an original-arc source is always required, a shortcut-pair
// source is required only if both of its operands currently are, and a
// None source never is. Bounds are left untouched here — the reverse pass
// can still re-mark sc required, and only clampUnrequiredBounds's final
// sweep over the settled Required flags may safely collapse bounds to
// +infinity.
func (c *Customizer) disableUnnecessaryOne(sc *cch.Shortcut) {
	if !sc.Required || !sc.Sources.IsValidPath() {
		return
	}
	for _, iv := range sc.Sources {
		if c.sourceRequired(iv.Src) {
			return
		}
	}
	sc.Required = false
}

func (c *Customizer) sourceRequired(src cch.ShortcutSource) bool {
	switch src.Kind {
	case cch.SourceOriginalEdge:
		return true
	case cch.SourceShortcutPair:
		return c.sideSlice(src.DownEdge.Side)[src.DownEdge.Index].Required &&
			c.sideSlice(src.UpEdge.Side)[src.UpEdge.Index].Required
	default:
		return false
	}
}

// reenableRequired is the reverse pass of §4.5.5: walk CCH edges
// tail-descending and, for every shortcut still required, re-mark its
// shortcut-pair source operands required even if the forward pass had
// just cleared them — a component can be individually unnecessary for
// its own v->w connection yet still be needed to answer a still-required
// parent shortcut's recursive unpacking.
func (c *Customizer) reenableRequired() {
	for tail := c.Topo.NumNodes; tail > 0; tail-- {
		v := tail - 1
		s, e := c.Topo.FirstOut[v], c.Topo.FirstOut[v+1]
		for edgeIdx := s; edgeIdx < e; edgeIdx++ {
			c.reenableOne(c.Upward[edgeIdx])
			c.reenableOne(c.Downward[edgeIdx])
		}
	}
}

func (c *Customizer) reenableOne(sc *cch.Shortcut) {
	if !sc.Required {
		return
	}
	for _, iv := range sc.Sources {
		if iv.Src.Kind != cch.SourceShortcutPair {
			continue
		}
		c.sideSlice(iv.Src.DownEdge.Side)[iv.Src.DownEdge.Index].Required = true
		c.sideSlice(iv.Src.UpEdge.Side)[iv.Src.UpEdge.Index].Required = true
	}
}

// clampUnrequiredBounds finishes §4.5.5: any edge that ends up not
// required has its bounds pinned to +infinity, regardless of which pass
// last touched it.
func (c *Customizer) clampUnrequiredBounds() {
	for _, sc := range c.Upward {
		if !sc.Required {
			sc.LowerBound = math.Inf(1)
			sc.UpperBound = math.Inf(1)
		}
	}
	for _, sc := range c.Downward {
		if !sc.Required {
			sc.LowerBound = math.Inf(1)
			sc.UpperBound = math.Inf(1)
		}
	}
}

// SetParIterThreshold overrides the driver's default separator-cell size
// above which a node's incident edges are customized in parallel rather
// than sequentially (NewDriver's own doc comment explains the default).
// Exposed so a caller can tune it for the machine the customizer actually
// runs on, e.g. from an engine config file.
func (c *Customizer) SetParIterThreshold(n int) {
	c.driver.ParIterThreshold = n
}

// Run drives all five phases in order over the given separator tree.
func (c *Customizer) Run(ctx context.Context, root *Cell) error {
	c.Respect()
	if err := c.PreCustomizeBounds(ctx, root); err != nil {
		return err
	}
	if err := c.PerfectCustomizeBounds(ctx, root); err != nil {
		return err
	}
	if err := c.CustomizePLFs(ctx, root); err != nil {
		return err
	}
	return c.PostCustomize(ctx, root)
}
