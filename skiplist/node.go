package skiplist

import "go.uber.org/atomic"

// maxHeight bounds the height of any tower in the list (H_MAX in the design
// docs). It is fixed for the lifetime of a list: the probabilistic skip
// list never needs, and never shrinks, a taller tower than this.
const maxHeight = 32

// removedBit marks a node's meta word as logically deleted. The remaining
// bits hold the node's height, which never exceeds maxHeight and so never
// collides with this bit.
const removedBit = uint32(1) << 31

// slot is an immutable snapshot of one level of a node's forward pointer:
// the successor currently linked at that level, and whether that level has
// been frozen for removal. A level's current slot is swapped atomically by
// pointer identity, which gives us a single compare-and-swap over the
// (pointer, tag) pair without resorting to bit-stealing on the pointer
// itself -- Go's garbage collector needs every word it scans to be a
// legitimate pointer or a value explicitly marked as scalar, so packing a
// tag bit into the low bits of a *node would corrupt GC metadata. This is
// exactly the fallback spec.md's design notes sanction: "If the target
// platform cannot guarantee [pointer alignment], use a separate per-level
// atomic byte, at the cost of an extra load per step" -- here the "byte"
// is carried alongside the pointer inside one boxed, atomically-swapped
// value instead of a sibling atomic field, which keeps the load/CAS pair
// a single atomic operation rather than two.
type slot[K any, V any] struct {
	next *node[K, V]
	tag  bool
}

// level is one entry in a node's forward pointer tower.
type level[K any, V any] struct {
	cur atomic.Pointer[slot[K, V]]
}

func (lv *level[K, V]) load() (*node[K, V], bool) {
	s := lv.cur.Load()
	if s == nil {
		return nil, false
	}
	return s.next, s.tag
}

// store publishes next with tag cleared, unconditionally, so it would
// overwrite a tag set by tagFreeze. linkLevel in insert.go therefore uses
// cas, not store, on the new node's own level: a concurrent removeNode may
// already have tagged it.
func (lv *level[K, V]) store(next *node[K, V]) {
	lv.cur.Store(&slot[K, V]{next: next})
}

// cas performs the compound (pointer, tag) compare-and-swap described in
// spec.md 4.1. Both the expected pointer and expected tag must match the
// current slot for the swap to take effect.
func (lv *level[K, V]) cas(oldNext *node[K, V], oldTag bool, newNext *node[K, V], newTag bool) bool {
	old := lv.cur.Load()
	var curNext *node[K, V]
	var curTag bool
	if old != nil {
		curNext, curTag = old.next, old.tag
	}
	if curNext != oldNext || curTag != oldTag {
		return false
	}
	return lv.cur.CompareAndSwap(old, &slot[K, V]{next: newNext, tag: newTag})
}

// tagFreeze CAS-loops the tag from false to true while preserving whatever
// successor is currently published, per spec.md 4.1's tag_freeze. It
// tolerates a concurrent tag_freeze racing to the same value (idempotent
// success), matching the remove-helper tolerance spec.md 4.6 step 3
// requires ("implementations must still tolerate the rare case where a
// concurrent helper raced us").
func (lv *level[K, V]) tagFreeze() {
	for {
		old := lv.cur.Load()
		if old != nil && old.tag {
			return
		}
		var next *node[K, V]
		if old != nil {
			next = old.next
		}
		if lv.cur.CompareAndSwap(old, &slot[K, V]{next: next, tag: true}) {
			return
		}
	}
}

// node is a skip list entry. key and val are immutable once the node is
// constructed; the only way to change a mapping is to logically remove the
// old node and publish a new one (see insert.go), never to mutate val in
// place.
type node[K any, V any] struct {
	key K
	val V

	// meta packs height (low bits) and the removed flag (high bit) into a
	// single atomic word so a thread can observe or flip "removed" without
	// racing a separate height field -- height never changes after
	// construction, so packing costs nothing and buys a single atomic op
	// for set-removed (spec.md 4.1/6.1).
	meta atomic.Uint32

	// refs counts the number of levels at which some live predecessor
	// currently links to this node. It starts at zero and is incremented
	// just before each level's publishing CAS (insert.go) and decremented
	// by each level's unlink CAS (remove.go, or a helper in search.go). A
	// node becomes eligible for retirement only once refs reaches zero
	// with removed already set (spec.md 3, "Ownership & lifecycle").
	refs atomic.Int32

	fwd []level[K, V]
}

func newNode[K any, V any](key K, val V, height int) *node[K, V] {
	n := &node[K, V]{
		key: key,
		val: val,
		fwd: make([]level[K, V], height),
	}
	n.meta.Store(uint32(height))
	return n
}

func (n *node[K, V]) height() int {
	return int(n.meta.Load() &^ removedBit)
}

func (n *node[K, V]) removed() bool {
	return n.meta.Load()&removedBit != 0
}

// setRemoved atomically flips the removed bit, returning false if another
// goroutine already won that race. This is the linearization point for
// Remove (spec.md 4.6).
func (n *node[K, V]) setRemoved() bool {
	for {
		old := n.meta.Load()
		if old&removedBit != 0 {
			return false
		}
		if n.meta.CompareAndSwap(old, old|removedBit) {
			return true
		}
	}
}

func (n *node[K, V]) addRef() {
	n.refs.Inc()
}

// subRef decrements the level reference count and reports whether it
// reached zero. Underflow indicates a library bug (double-unlink of the
// same level), which spec.md 7 treats as a broken invariant: abort.
func (n *node[K, V]) subRef() (reachedZero bool) {
	v := n.refs.Dec()
	if v < 0 {
		panic("skiplist: node refcount underflow")
	}
	return v == 0
}
