package pool

import "container/list"

// fifoQueue is the Pool's `available` set (spec.md §3/§4.2): a strict
// FIFO of idle entries. FIFO (not the teacher's LIFO mvStack, see
// DESIGN.md) gives least-recently-used reuse, which is what spec.md §4.2
// "Ordering" relies on to make age-based recycling actually trigger under
// realistic access patterns.
type fifoQueue struct {
	l *list.List
}

func newFIFOQueue() *fifoQueue {
	return &fifoQueue{l: list.New()}
}

func (q *fifoQueue) push(e *entry) {
	q.l.PushBack(e)
}

func (q *fifoQueue) pop() (*entry, bool) {
	front := q.l.Front()
	if front == nil {
		return nil, false
	}
	q.l.Remove(front)
	return front.Value.(*entry), true
}

func (q *fifoQueue) length() int {
	return q.l.Len()
}

// drain removes and returns every queued entry, in FIFO order, emptying the
// queue.
func (q *fifoQueue) drain() []*entry {
	entries := make([]*entry, 0, q.l.Len())
	for e, ok := q.pop(); ok; e, ok = q.pop() {
		entries = append(entries, e)
	}
	return entries
}
