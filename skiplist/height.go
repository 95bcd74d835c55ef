package skiplist

import "math/bits"

// genHeight advances the list's xorshift seed and derives a geometric
// random height in [1, maxHeight], clamped so a streak of large heights
// cannot balloon empty top levels. Grounded on the teacher's randomHeight
// (skiptrie.go), generalized from its rejection-sampling coin-flip loop to
// the xorshift/trailing-zeros construction spec.md 4.2 specifies -- which
// is, in turn, exactly original_source's gen_height (internal/utils.rs).
func (l *List[K, V]) genHeight() int {
	seed := l.state.seed.Load()
	seed ^= seed << 13
	seed ^= seed >> 17
	seed ^= seed << 5
	l.state.seed.Store(seed)

	height := bits.TrailingZeros64(seed) + 1
	if height > maxHeight {
		height = maxHeight
	}

	// Clamp: a height this tall is wasted if the head doesn't yet have a
	// live node at height-2, i.e. the level just below would be an empty
	// one-node chain. This is a performance decision, not a correctness
	// one (spec.md 9, "Height clamping at insert").
	for height >= 4 {
		next, _ := l.head.fwd[height-2].load()
		if next != nil {
			break
		}
		height--
	}

	for {
		cur := l.state.maxHeight.Load()
		if int32(height) <= cur {
			break
		}
		if l.state.maxHeight.CompareAndSwap(cur, int32(height)) {
			break
		}
	}

	return height
}
