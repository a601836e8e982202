// Package tdcustomize runs the separator-parallel customizer that turns a
// CCH overlay topology plus a time-dependent road graph into a populated
// CustomizedGraph: the five phases of respecting, static bound
// pre-customization, perfect bound customization, main PLF customization,
// and post-customization required propagation.
package tdcustomize

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"tdcch/pkg/cch"
)

// Cell is one node of the nested-dissection separator tree: a contiguous
// rank range [Lo,Hi) of separator nodes. Children occupy disjoint,
// strictly lower rank ranges and may be customized concurrently with each
// other; Lo..Hi itself is only processed once every child has finished
// (spec.md §4.4).
type Cell struct {
	Lo, Hi   uint32
	Children []*Cell
}

// Driver walks a separator tree and decides, per separator node, whether
// that node's own incident edges are handed to ParIter or SeqIter.
type Driver struct {
	Topo             *cch.Topology
	ParIterThreshold int
}

// NewDriver builds a Driver with a default ParIter threshold; 64 incident
// edges is the point past which per-thread goroutine overhead is paid
// back by the parallel edge work, mirroring the magnitude the teacher
// uses for its own worker-pool batch size in pkg/ch/contractor.go.
func NewDriver(topo *cch.Topology) *Driver {
	return &Driver{Topo: topo, ParIterThreshold: 64}
}

// Run customizes the whole tree rooted at root, invoking processNode
// once per separator node in ascending rank order within each cell.
func (d *Driver) Run(ctx context.Context, root *Cell, processNode func(v uint32)) error {
	return d.runCell(ctx, root, processNode)
}

func (d *Driver) runCell(ctx context.Context, cell *Cell, processNode func(uint32)) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, child := range cell.Children {
		child := child
		g.Go(func() error { return d.runCell(ctx, child, processNode) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for v := cell.Lo; v < cell.Hi; v++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		processNode(v)
	}
	return nil
}

// EdgeRange runs f over [lo,hi), picking ParIter for ranges at or above
// the driver's ParIterThreshold and SeqIter below it — the "large
// separators get edge-level parallelism, small cells run sequentially"
// split of spec.md §4.4.
func (d *Driver) EdgeRange(lo, hi uint32, f func(edge uint32)) {
	if hi-lo >= uint32(d.ParIterThreshold) {
		ParIter(lo, hi, f)
	} else {
		SeqIter(lo, hi, f)
	}
}

// ParIter runs f(i) for every i in [lo,hi) on its own goroutine and waits
// for all of them.
func ParIter(lo, hi uint32, f func(uint32)) {
	var wg sync.WaitGroup
	for i := lo; i < hi; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(i)
		}()
	}
	wg.Wait()
}

// SeqIter runs f(i) for every i in [lo,hi) in order, on the caller's
// goroutine.
func SeqIter(lo, hi uint32, f func(uint32)) {
	for i := lo; i < hi; i++ {
		f(i)
	}
}

// FlatCell builds the trivial single-cell separator tree covering every
// node with no children. The real nested-dissection decomposition is, like
// node order and the elimination tree itself, external input (spec.md
// §4.3); FlatCell is the degenerate case for callers that have not
// computed one, or for tests, and still produces correct (if
// unparallelized across cells) results since nodes within a cell still
// run in ascending rank order.
func FlatCell(numNodes uint32) *Cell {
	return &Cell{Lo: 0, Hi: numNodes}
}
