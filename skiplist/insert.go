package skiplist

// linkLevel publishes n at level i, retrying against a freshly located
// (predecessor, successor) bracket until the publishing compare-and-swap
// succeeds, or until it finds level i of n already tagged by a concurrent
// removeNode, in which case the level is left unpublished. Each level is
// linked independently: once level 0 succeeds,
// the key is reachable (the linearization point for presence), and the
// remaining levels are published best-effort immediately afterward. The
// brief window in which a tall node is only partially linked is
// harmless, since every search always walks down to level 0 regardless
// of what shortcuts above it exist yet -- this trades a small, bounded
// amount of search efficiency for never needing to unwind a partial
// tower on contention.
func (l *List[K, V]) linkLevel(n *node[K, V], i int) {
	for {
		pred, succ := l.findLevelFrom(l.head, i, n.key)
		cur, tagged := n.fwd[i].load()
		if tagged || !n.fwd[i].cas(cur, false, succ.n, false) {
			// A concurrent removeNode froze this level of n; publishing it
			// here would leave a removed node linked.
			l.domain.releaseRef(succ)
			return
		}
		n.addRef()
		if pred.fwd[i].cas(succ.n, false, n, false) {
			l.domain.releaseRef(succ)
			return
		}
		n.subRef()
		l.domain.releaseRef(succ)
	}
}

// Insert adds key/val, evicting any existing mapping for key and
// returning the evicted value with true; the key itself is not returned,
// since it is the key the caller passed in. An update is never an
// in-place mutation -- the old node is logically removed and physically
// unlinked, then a new node is linked in its place -- matching node.go's
// invariant that a node's val never changes after construction, and
// grounded on the teacher's skiplistInsert (skiptrie.go) and
// original_source's insert/link_nodes (internal/sync/mod.rs).
func (l *List[K, V]) Insert(key K, val V) (V, bool) {
	var zero V

	for {
		sr := l.find(key)
		existing := sr.succs[0].n
		if existing == nil || existing.key != key {
			l.release(sr)
			break
		}
		old := existing.val
		l.release(sr)

		if !l.removeNode(existing) {
			// Lost the race: someone else is already evicting this key.
			// Retry against a fresh search rather than assume we know
			// the outcome of their concurrent insert.
			continue
		}
		l.state.length.Dec()

		height := l.genHeight()
		n := newNode(key, val, height)
		for i := 0; i < height; i++ {
			l.linkLevel(n, i)
		}
		l.state.length.Inc()
		return old, true
	}

	height := l.genHeight()
	n := newNode(key, val, height)
	for i := 0; i < height; i++ {
		l.linkLevel(n, i)
	}
	l.state.length.Inc()
	return zero, false
}
