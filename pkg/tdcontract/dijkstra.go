package tdcontract

import "math"

// MinHeap is a concrete-typed min-heap for Dijkstra's priority queue,
// the same node/dist pair idiom as pkg/routing/dijkstra.go's MinHeap,
// collapsed to the single direction a plain shortest-path oracle needs.
type MinHeap struct {
	items []pqItem
}

type pqItem struct {
	node uint32
	dist uint32
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node, dist uint32) {
	h.items = append(h.items, pqItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() (node, dist uint32) {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item.node, item.dist
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].dist >= h.items[parent].dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		if l := 2*i + 1; l < n && h.items[l].dist < h.items[smallest].dist {
			smallest = l
		}
		if r := 2*i + 2; r < n && h.items[r].dist < h.items[smallest].dist {
			smallest = r
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

const noNode = math.MaxUint32

// Dijkstra is a plain unidirectional shortest-path search over a scalar
// Graph, used as the ground-truth oracle a profile/point query's
// lower-bound-at-the-minimum result is checked against in correctness
// tests (testable property 6): querying the predicted customization at
// the time of day the scalar weights were sampled from must never beat
// what a from-scratch Dijkstra over those same weights finds.
func Dijkstra(g *Graph, source, target uint32) (dist uint32, path []uint32, ok bool) {
	n := g.NumNodes
	distArr := make([]uint32, n)
	pred := make([]uint32, n)
	for i := range distArr {
		distArr[i] = math.MaxUint32
		pred[i] = noNode
	}
	distArr[source] = 0

	var pq MinHeap
	pq.Push(source, 0)

	for pq.Len() > 0 {
		u, d := pq.Pop()
		if d > distArr[u] {
			continue
		}
		if u == target {
			break
		}
		s, e := g.EdgesFrom(u)
		for i := s; i < e; i++ {
			v, w := g.Head[i], g.Weight[i]
			nd := d + w
			if nd < distArr[v] {
				distArr[v] = nd
				pred[v] = u
				pq.Push(v, nd)
			}
		}
	}

	if distArr[target] == math.MaxUint32 {
		return 0, nil, false
	}

	for at := target; at != noNode; {
		path = append(path, at)
		if at == source {
			break
		}
		at = pred[at]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return distArr[target], path, true
}
