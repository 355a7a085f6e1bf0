package hashtrie

import (
	"container/heap"
	"fmt"
)

// LeafPointer is a row pointer tagged with the ordinal of its generation.
// Higher ordinals are more recent generations.
type LeafPointer struct {
	Ordinal int
	*RowPointer
}

// compareLeafPointers orders by iid ascending, system time descending, then
// generation ordinal descending.
func compareLeafPointers(a, b *LeafPointer) int {
	if c := CompareRowPointers(a.RowPointer, b.RowPointer); c != 0 {
		return c
	}
	switch {
	case a.Ordinal > b.Ordinal:
		return -1
	case a.Ordinal < b.Ordinal:
		return 1
	default:
		return 0
	}
}

type leafHeap []*LeafPointer

func (h leafHeap) Len() int           { return len(h) }
func (h leafHeap) Less(i, j int) bool { return compareLeafPointers(h[i], h[j]) < 0 }
func (h leafHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *leafHeap) Push(x any) { *h = append(*h, x.(*LeafPointer)) }

func (h *leafHeap) Pop() any {
	old := *h
	n := len(old)
	lp := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return lp
}

// LeafMergeQueue fans in one leaf pointer per generation for a single trie
// path and yields rows in the order of a global sort by iid ascending,
// system time descending, generation descending.
//
// Not safe for concurrent use.
type LeafMergeQueue struct {
	path Path
	h    leafHeap
}

// NewLeafMergeQueue queues the pointers that are valid for path. Nil and
// exhausted pointers are dropped.
func NewLeafMergeQueue(path Path, lps []*LeafPointer) *LeafMergeQueue {
	q := &LeafMergeQueue{path: path, h: make(leafHeap, 0, len(lps))}
	seen := make(map[int]bool, len(lps))
	for _, lp := range lps {
		if lp == nil {
			continue
		}
		if seen[lp.Ordinal] {
			panic(fmt.Errorf("duplicate generation ordinal %d at %v", lp.Ordinal, path))
		}
		seen[lp.Ordinal] = true
		if lp.IsValid(path) {
			q.h = append(q.h, lp)
		}
	}
	heap.Init(&q.h)
	return q
}

func (q *LeafMergeQueue) Path() Path { return q.path }

func (q *LeafMergeQueue) Len() int { return q.h.Len() }

// Poll removes and returns the minimum pointer, or nil when the queue is
// empty. Hand it back with Advance to continue with its next row.
func (q *LeafMergeQueue) Poll() *LeafPointer {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*LeafPointer)
}

// Advance moves lp to its next row and requeues it if that row is still
// within the queue's path.
func (q *LeafMergeQueue) Advance(lp *LeafPointer) {
	lp.RowPointer.Advance()
	if lp.IsValid(q.path) {
		heap.Push(&q.h, lp)
	}
}

// Merge drains the queue in order, calling pick for every row. Merging
// stops early when pick returns false or an error.
func (q *LeafMergeQueue) Merge(pick func(lp *LeafPointer) (bool, error)) error {
	for {
		lp := q.Poll()
		if lp == nil {
			return nil
		}
		more, err := pick(lp)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		q.Advance(lp)
	}
}
