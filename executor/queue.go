package executor

import "container/heap"

// priorityQueue orders tasks by (-priority, seq): highest Priority first,
// ties broken by submission order (spec.md §5.1). There's no third-party
// priority-heap library anywhere in the retrieved pack, so this is built
// directly on the standard library's container/heap — see DESIGN.md.
type priorityQueue []*task

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) {
	*q = append(*q, x.(*task))
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

var _ heap.Interface = (*priorityQueue)(nil)
