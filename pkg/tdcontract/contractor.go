package tdcontract

import (
	"container/heap"
	"log"
)

// maxShortcutsPerNode is the limit on fill-in edges a single contraction
// step may create. Nodes exceeding this form an uncontracted "core" at the
// top of the elimination order.
const maxShortcutsPerNode = 1000

// adjEntry is an edge in the mutable adjacency list built during
// contraction.
type adjEntry struct {
	to     uint32
	weight uint32
}

// Edge is one topology arc discovered by contraction: an original road arc
// or a fill-in edge introduced by eliminating some lower-rank node between
// its endpoints. From is always the lower-rank endpoint, matching
// cch.Edge's orientation contract, but this package keeps its own type so
// it never needs to import pkg/cch — a caller (pkg/preprocess.Contract) converts.
type Edge struct {
	From, To uint32
}

// Order is the result of contracting a scalar graph: the elimination rank
// of every node plus the full set of upward topology edges (original arcs
// and fill-in together) a CCH customization phase needs as input.
type Order struct {
	Rank  []uint32 // Rank[node] = elimination rank, node contracted earliest has rank 0
	Edges []Edge   // From has strictly lower rank than To
}

// Contract runs greedy min-degree contraction with batched witness
// searches over g's scalar weights (a free-flow or other static lower
// bound — time-dependent profiles never reach this package) to derive a
// CCH-ready elimination order and fill-in pattern. Adapted from
// pkg/ch/contractor.go's Contract: same priority queue, lazy re-priority,
// and batch witness search, but the result is the symbolic edge set a CCH
// topology needs rather than a weighted CH overlay — no shortcut weight is
// ever retained once it has done its job of proving a fill-in edge
// necessary.
func Contract(g *Graph) *Order {
	n := g.NumNodes
	if n == 0 {
		return &Order{}
	}

	outAdj := make([][]adjEntry, n)
	inAdj := make([][]adjEntry, n)
	for u := uint32(0); u < n; u++ {
		s, e := g.EdgesFrom(u)
		for i := s; i < e; i++ {
			v, w := g.Head[i], g.Weight[i]
			outAdj[u] = append(outAdj[u], adjEntry{to: v, weight: w})
			inAdj[v] = append(inAdj[v], adjEntry{to: u, weight: w})
		}
	}

	contracted := make([]bool, n)
	rank := make([]uint32, n)
	contractedNeighbors := make([]int, n)
	level := make([]int, n)

	pq := make(priorityQueue, n)
	for i := uint32(0); i < n; i++ {
		pq[i] = &pqEntry{
			node:     i,
			priority: computePriority(outAdj, inAdj, i, contracted, 0, 0),
			index:    int(i),
		}
	}
	heap.Init(&pq)

	ws := newWitnessState(n)

	log.Printf("tdcontract: contracting %d nodes", n)

	// fillIn collects every edge — original or discovered — oriented by
	// final rank once the whole order is known, so it's gathered as
	// (lo, hi node-id-as-yet-unranked) pairs here and re-emitted at the end.
	type rawEdge struct{ a, b uint32 }
	seen := make(map[[2]uint32]bool)
	var rawEdges []rawEdge
	addEdge := func(a, b uint32) {
		key := [2]uint32{a, b}
		if a > b {
			key = [2]uint32{b, a}
		}
		if seen[key] {
			return
		}
		seen[key] = true
		rawEdges = append(rawEdges, rawEdge{a, b})
	}
	for u := uint32(0); u < n; u++ {
		for _, e := range outAdj[u] {
			addEdge(u, e.to)
		}
	}
	numOriginal := len(rawEdges)

	order := uint32(0)
	logInterval := uint32(50000)

	for pq.Len() > 0 {
		entry := heap.Pop(&pq).(*pqEntry)
		node := entry.node
		if contracted[node] {
			continue
		}

		newPriority := computePriority(outAdj, inAdj, node, contracted, contractedNeighbors[node], level[node])
		if newPriority > entry.priority && pq.Len() > 0 && newPriority > pq[0].priority {
			entry.priority = newPriority
			heap.Push(&pq, entry)
			continue
		}

		shortcuts := findShortcuts(ws, outAdj, inAdj, node, contracted)
		if len(shortcuts) > maxShortcutsPerNode {
			log.Printf("tdcontract: stopping contraction at node %d (%d fill-in edges, limit %d); %d nodes remain in core",
				node, len(shortcuts), maxShortcutsPerNode, n-order)
			break
		}

		contracted[node] = true
		rank[node] = order
		order++

		for _, sc := range shortcuts {
			outAdj[sc.from] = append(outAdj[sc.from], adjEntry{to: sc.to, weight: sc.weight})
			inAdj[sc.to] = append(inAdj[sc.to], adjEntry{to: sc.from, weight: sc.weight})
			addEdge(sc.from, sc.to)
		}

		for _, e := range outAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}
		for _, e := range inAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}

		remaining := n - order
		switch {
		case remaining < 1000:
			logInterval = 100
		case remaining < 10000:
			logInterval = 1000
		case remaining < 100000:
			logInterval = 10000
		default:
			logInterval = 50000
		}
		if order%logInterval == 0 {
			log.Printf("tdcontract: contracted %d/%d nodes, %d fill-in edges so far", order, n, len(rawEdges)-numOriginal)
		}
	}

	for i := uint32(0); i < n; i++ {
		if !contracted[i] {
			contracted[i] = true
			rank[i] = order
			order++
		}
	}

	// BuildTopology requires node id == rank (pkg/cch/topology.go), so
	// edges are emitted directly in rank space rather than original node
	// ids — the caller never needs to Permute the topology edges, only
	// anything else indexed by original node id (coordinates, OSM tags).
	edges := make([]Edge, 0, len(rawEdges))
	for _, e := range rawEdges {
		ra, rb := rank[e.a], rank[e.b]
		if ra < rb {
			edges = append(edges, Edge{From: ra, To: rb})
		} else {
			edges = append(edges, Edge{From: rb, To: ra})
		}
		// ra == rb cannot happen: rank is a permutation of 0..n-1.
	}

	log.Printf("tdcontract: done, %d topology edges (%d original, %d fill-in)", len(edges), numOriginal, len(edges)-numOriginal)

	return &Order{Rank: rank, Edges: edges}
}

type shortcut struct {
	from, to, weight uint32
}

// findShortcuts mirrors pkg/ch/contractor.go's batched witness search
// unchanged: one Dijkstra per incoming neighbor instead of one per
// (incoming, outgoing) pair.
func findShortcuts(ws *witnessState, outAdj, inAdj [][]adjEntry, node uint32, contracted []bool) []shortcut {
	var incoming []adjEntry
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			incoming = append(incoming, e)
		}
	}
	var outgoing []adjEntry
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			outgoing = append(outgoing, e)
		}
	}
	if len(incoming) == 0 || len(outgoing) == 0 {
		return nil
	}

	var shortcuts []shortcut
	for _, in := range incoming {
		var maxOut uint32
		for _, out := range outgoing {
			if out.to != in.to && out.weight > maxOut {
				maxOut = out.weight
			}
		}
		if maxOut == 0 {
			continue
		}
		maxWeight := in.weight + maxOut
		batchWitnessSearch(ws, outAdj, in.to, node, maxWeight, contracted)

		for _, out := range outgoing {
			if out.to == in.to {
				continue
			}
			scWeight := in.weight + out.weight
			if ws.dist[out.to] > scWeight {
				shortcuts = append(shortcuts, shortcut{from: in.to, to: out.to, weight: scWeight})
			}
		}
	}
	return shortcuts
}

// computePriority is the teacher's min-degree-style heuristic, unchanged.
func computePriority(outAdj, inAdj [][]adjEntry, node uint32, contracted []bool, contractedNeighbors, level int) int {
	activeIn := 0
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			activeIn++
		}
	}
	activeOut := 0
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			activeOut++
		}
	}
	edgeDifference := activeIn*activeOut - (activeIn + activeOut)
	return edgeDifference + 2*contractedNeighbors + level
}

type pqEntry struct {
	node     uint32
	priority int
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*pq)
	*pq = append(*pq, entry)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[:n-1]
	return entry
}
