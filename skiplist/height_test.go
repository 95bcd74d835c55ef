package skiplist

import "testing"

func TestGenHeightBounded(t *testing.T) {
	l := New[int, int](WithSeed[int, int](12345))
	defer l.Close()

	for i := 0; i < 10000; i++ {
		h := l.genHeight()
		if h < 1 || h > maxHeight {
			t.Fatalf("genHeight() = %d, want in [1, %d]", h, maxHeight)
		}
	}
}

func TestGenHeightMonotonicMaxHeight(t *testing.T) {
	l := New[int, int](WithSeed[int, int](1))
	defer l.Close()

	prev := l.state.maxHeight.Load()
	for i := 0; i < 5000; i++ {
		l.genHeight()
		cur := l.state.maxHeight.Load()
		if cur < prev {
			t.Fatalf("state.maxHeight decreased from %d to %d", prev, cur)
		}
		prev = cur
	}
}

func TestGenHeightDeterministicWithSeed(t *testing.T) {
	a := New[int, int](WithSeed[int, int](777))
	defer a.Close()
	b := New[int, int](WithSeed[int, int](777))
	defer b.Close()

	for i := 0; i < 1000; i++ {
		ha := a.genHeight()
		hb := b.genHeight()
		if ha != hb {
			t.Fatalf("iteration %d: genHeight diverged: %d vs %d", i, ha, hb)
		}
	}
}
