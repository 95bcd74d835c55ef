package skiplist

import (
	"cmp"
	"iter"
)

// stepLive returns the first live (untagged) node reachable from "from"
// at level 0, helping unlink any tagged node it steps over along the
// way. It reports ok=false if "from" itself turns out to be tagged, in
// which case it is no longer a safe anchor, or if a helping unlink CAS
// loses a race; either way the caller must re-derive an anchor (e.g. by
// re-running find) rather than assume "from" can simply be retried. l.head is always a safe anchor, since the head
// sentinel is never logically removed.
func (l *List[K, V]) stepLive(from *node[K, V]) (succ protectedRef[K, V], ok bool) {
	pred := from
	for {
		ref, predTagged, _ := l.domain.protectRef(&pred.fwd[0])
		if predTagged {
			return protectedRef[K, V]{}, false
		}
		curr := ref.n
		if curr == nil {
			return ref, true
		}
		nref, currTagged, _ := l.domain.protectRef(&curr.fwd[0])
		if !currTagged {
			l.domain.releaseRef(nref)
			return ref, true
		}
		unlinked := pred.fwd[0].cas(curr, false, nref.n, false)
		if unlinked {
			if curr.subRef() {
				l.domain.retire(curr)
			}
		}
		l.domain.releaseRef(nref)
		l.domain.releaseRef(ref)
		if !unlinked {
			return protectedRef[K, V]{}, false
		}
	}
}

// First returns the smallest key currently in the list. Grounded on
// original_source's get_first (internal/sync/mod.rs).
func (l *List[K, V]) First() (K, V, bool) {
	var zk K
	var zv V
	for {
		succ, ok := l.stepLive(l.head)
		if !ok {
			continue
		}
		if succ.n == nil {
			l.domain.releaseRef(succ)
			return zk, zv, false
		}
		k, v := succ.n.key, succ.n.val
		l.domain.releaseRef(succ)
		return k, v, true
	}
}

// next returns the smallest key strictly greater than key, if any.
// Grounded on original_source's next_node. Unlike First, a restart here
// cannot simply re-anchor at the head: "next" is defined relative to
// key, so any retry must re-run the key-bounded search rather than fall
// back to "smallest key in the whole list".
func (l *List[K, V]) next(key K) (K, V, bool) {
	var zk K
	var zv V
	for {
		_, succ := l.findLevelFrom(l.head, 0, key)
		if succ.n == nil {
			l.domain.releaseRef(succ)
			return zk, zv, false
		}
		if succ.n.key != key {
			k, v := succ.n.key, succ.n.val
			l.domain.releaseRef(succ)
			return k, v, true
		}

		anchor := succ.n
		l.domain.releaseRef(succ)
		nxt, ok := l.stepLive(anchor)
		if !ok {
			continue
		}
		if nxt.n == nil {
			l.domain.releaseRef(nxt)
			return zk, zv, false
		}
		k, v := nxt.n.key, nxt.n.val
		l.domain.releaseRef(nxt)
		return k, v, true
	}
}

// Last returns the largest key currently in the list. Dropping the
// teacher's back-pointers (spec.md's own redesign note: back-pointers do
// not compose with lock-free CAS unlinking) means this walks the full
// level-0 chain rather than following a reverse link. Each step is a
// call to next, which re-walks level 0 from the head, so the cost is
// O(n^2) in the number of keys.
func (l *List[K, V]) Last() (K, V, bool) {
	k, v, ok := l.First()
	if !ok {
		return k, v, false
	}
	for {
		nk, nv, nok := l.next(k)
		if !nok {
			return k, v, true
		}
		k, v = nk, nv
	}
}

// Entry is a point-in-time snapshot of one mapping, produced by iterating
// a List. Its key and value remain valid to read after the list has
// moved on; Remove re-applies against the live list by key, matching
// original_source's Entry::remove.
type Entry[K cmp.Ordered, V any] struct {
	list *List[K, V]
	key  K
	val  V
}

func (e Entry[K, V]) Key() K   { return e.key }
func (e Entry[K, V]) Value() V { return e.val }

// Remove deletes this entry's key from its list and reports whether it
// was still present -- it may already have been removed, by this entry's
// own consumer or another goroutine, since the entry was produced.
func (e Entry[K, V]) Remove() bool {
	_, ok := e.list.Remove(e.key)
	return ok
}

// All returns a range-over-func sequence of every key/value currently
// reachable in ascending order, suitable for `for k, v := range l.All()`.
// Like any concurrent snapshot, it reflects a best-effort, not
// linearizable, view of a list mutated while iteration is in progress.
func (l *List[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		k, v, ok := l.First()
		for ok {
			if !yield(k, v) {
				return
			}
			k, v, ok = l.next(k)
		}
	}
}

// Entries is All, wrapped as Entry values so a consumer can delete the
// entry it is currently looking at without re-deriving its key.
func (l *List[K, V]) Entries() iter.Seq[Entry[K, V]] {
	return func(yield func(Entry[K, V]) bool) {
		k, v, ok := l.First()
		for ok {
			if !yield(Entry[K, V]{list: l, key: k, val: v}) {
				return
			}
			k, v, ok = l.next(k)
		}
	}
}
