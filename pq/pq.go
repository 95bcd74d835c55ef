// Package pq provides a concurrent priority queue built directly on top
// of the skiplist package: a value's priority is its ordering as a key,
// and popping the queue removes the smallest key currently present.
// Grounded on original_source's collections::priority_queue, which is
// exactly this adapter -- a skip list keyed by value with a unit payload.
package pq

import (
	"cmp"

	"github.com/ark-ds/skiplist/skiplist"
)

// Queue is a thread-safe priority queue: the value that compares least
// is always the next one popped. Duplicate values collapse into a single
// entry, since the underlying list is keyed by value -- callers that need
// duplicate priorities distinguishable should wrap V in a tiebreaker
// (e.g. pairing it with a sequence number).
type Queue[V cmp.Ordered] struct {
	list *skiplist.List[V, struct{}]
}

// New constructs an empty Queue.
func New[V cmp.Ordered](opts ...skiplist.Option[V, struct{}]) *Queue[V] {
	return &Queue[V]{list: skiplist.New[V, struct{}](opts...)}
}

// Push inserts value, or re-admits it if it had been popped and is being
// pushed again.
func (q *Queue[V]) Push(value V) {
	q.list.Insert(value, struct{}{})
}

// Peek returns the smallest value currently in the queue, without
// removing it.
func (q *Queue[V]) Peek() (V, bool) {
	v, _, ok := q.list.First()
	return v, ok
}

// Pop removes and returns the smallest value currently in the queue.
func (q *Queue[V]) Pop() (V, bool) {
	for {
		v, _, ok := q.list.First()
		if !ok {
			var zero V
			return zero, false
		}
		if _, removed := q.list.Remove(v); removed {
			return v, true
		}
		// Someone else popped the same value first; try again.
	}
}

// Len reports the number of values currently in the queue.
func (q *Queue[V]) Len() int { return q.list.Len() }

// Close releases the queue's underlying reclamation resources.
func (q *Queue[V]) Close() { q.list.Close() }
