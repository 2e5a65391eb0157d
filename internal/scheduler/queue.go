package scheduler

import (
	"container/heap"

	"github.com/athenasec/athena/pkg/types"
)

// item is one queued request. seq preserves submission order among equal
// priorities.
type item struct {
	req   *types.BatchRequest
	seq   int
	index int
}

// requestHeap orders pending requests by (priority ascending, submittedAt
// ascending, submission sequence ascending): strict priority with FIFO
// tie-break.
type requestHeap []*item

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.req.Priority != b.req.Priority {
		return a.req.Priority < b.req.Priority
	}
	if !a.req.SubmittedAt.Equal(b.req.SubmittedAt) {
		return a.req.SubmittedAt.Before(b.req.SubmittedAt)
	}
	return a.seq < b.seq
}

func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *requestHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

func (h *requestHeap) push(it *item) {
	heap.Push(h, it)
}

func (h *requestHeap) pop() *item {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*item)
}
