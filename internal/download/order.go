package download

import "container/heap"

// planOrder computes a download order over [0, n) biased toward
// first-visible data: index 0, then n-1, then the midpoint of the
// largest remaining gap, recursively, until every index has been
// visited exactly once.
//
// A literal step-halving recursion does not provably terminate with
// every index visited for arbitrary n. This implementation instead
// maintains an explicit max-heap of unfilled gaps ordered by (size
// desc, lo asc): each pop contributes exactly one new index and splits
// into two strictly smaller gaps (or none), which provably exhausts
// [0, n) in at most n steps. For n=3 this yields [0,2,1], not the
// [0,1,2] a "small n falls back to natural order" carve-out would give.
func planOrder(n int) []int {
	if n <= 0 {
		return nil
	}

	order := make([]int, 0, n)
	order = append(order, 0)
	if n == 1 {
		return order
	}
	order = append(order, n-1)

	gaps := &gapHeap{}
	heap.Init(gaps)
	if n-2 >= 1 {
		heap.Push(gaps, gap{lo: 1, hi: n - 2})
	}

	for gaps.Len() > 0 {
		g := heap.Pop(gaps).(gap)
		mid := g.lo + (g.hi-g.lo)/2
		order = append(order, mid)

		if mid-1 >= g.lo {
			heap.Push(gaps, gap{lo: g.lo, hi: mid - 1})
		}
		if mid+1 <= g.hi {
			heap.Push(gaps, gap{lo: mid + 1, hi: g.hi})
		}
	}

	return order
}

type gap struct {
	lo, hi int
}

func (g gap) size() int { return g.hi - g.lo + 1 }

// gapHeap is a max-heap on (size desc, lo asc) for deterministic
// ordering between equally sized gaps.
type gapHeap []gap

func (h gapHeap) Len() int { return len(h) }
func (h gapHeap) Less(i, j int) bool {
	if h[i].size() != h[j].size() {
		return h[i].size() > h[j].size()
	}
	return h[i].lo < h[j].lo
}
func (h gapHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *gapHeap) Push(x any) {
	*h = append(*h, x.(gap))
}

func (h *gapHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
