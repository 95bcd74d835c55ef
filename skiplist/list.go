package skiplist

import (
	"cmp"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// listState holds the mutable, atomically-accessed bookkeeping shared by
// every operation on a List: its element count, the tallest level any
// node currently occupies, and the xorshift state driving genHeight.
type listState struct {
	length    atomic.Int64
	maxHeight atomic.Int32
	seed      atomic.Uint64
}

// List is a concurrent, lock-free ordered map keyed by any cmp.Ordered
// type. It is backed by a probabilistic skip list whose forward pointers
// are updated with compare-and-swap rather than locks, and whose removed
// nodes are tracked through a hazard-pointer Domain rather than freed
// directly -- see DESIGN.md for why that tracking, not deallocation
// itself, is the faithful Go analogue of the original's reclamation
// scheme. The zero value is not usable; construct one with New.
//
// Grounded on the teacher's SkipTrie (skiptrie.go), stripped of its
// x-fast-trie half (no well-defined bounded universe exists for a
// generic cmp.Ordered key) and generalized from a fixed tower height to
// the xorshift-derived per-node height this port uses throughout.
type List[K cmp.Ordered, V any] struct {
	head      *node[K, V]
	state     *listState
	domain    *Domain[K, V]
	ownDomain bool
	logger    *zap.Logger
}

// Option configures a List at construction.
type Option[K cmp.Ordered, V any] func(*listConfig[K, V])

type listConfig[K cmp.Ordered, V any] struct {
	domain *Domain[K, V]
	logger *zap.Logger
	seed   uint64
}

// WithDomain shares an existing reclamation Domain across several lists
// instead of giving this one a private domain. Close does not stop a
// shared Domain -- whoever constructed it owns its lifecycle.
func WithDomain[K cmp.Ordered, V any](d *Domain[K, V]) Option[K, V] {
	return func(c *listConfig[K, V]) { c.domain = d }
}

// WithLogger attaches a structured logger used only for reclamation
// diagnostics (retired-garbage watermark warnings); nothing on the happy
// path logs.
func WithLogger[K cmp.Ordered, V any](logger *zap.Logger) Option[K, V] {
	return func(c *listConfig[K, V]) { c.logger = logger }
}

// WithSeed fixes the height generator's starting seed, for reproducible
// tower shapes in tests. Leave unset in production.
func WithSeed[K cmp.Ordered, V any](seed uint64) Option[K, V] {
	return func(c *listConfig[K, V]) { c.seed = seed }
}

// New constructs an empty List.
func New[K cmp.Ordered, V any](opts ...Option[K, V]) *List[K, V] {
	cfg := listConfig[K, V]{
		logger: zap.NewNop(),
		seed:   uint64(time.Now().UnixNano()) ^ 0x9E3779B97F4A7C15,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.seed == 0 {
		cfg.seed = 0x2545F4914F6CDD1D
	}

	var zeroK K
	var zeroV V
	l := &List[K, V]{
		head:   newNode[K, V](zeroK, zeroV, maxHeight),
		state:  &listState{},
		logger: cfg.logger,
	}
	l.state.maxHeight.Store(1)
	l.state.seed.Store(cfg.seed)

	if cfg.domain != nil {
		l.domain = cfg.domain
		l.ownDomain = false
	} else {
		l.domain = NewDomain[K, V](WithDomainLogger(cfg.logger))
		l.ownDomain = true
	}
	return l
}

// Len reports the number of mappings currently in the list.
func (l *List[K, V]) Len() int { return int(l.state.length.Load()) }

// IsEmpty reports whether the list has no mappings.
func (l *List[K, V]) IsEmpty() bool { return l.Len() == 0 }

// Get returns key's mapped value, if present.
func (l *List[K, V]) Get(key K) (V, bool) {
	var zero V
	sr := l.find(key)
	target := sr.succs[0].n
	l.release(sr)
	if target == nil || target.key != key {
		return zero, false
	}
	return target.val, true
}

// Close shuts down the List's private reclamation Domain, if it owns
// one, stopping its background sweep goroutine. A List constructed with
// WithDomain leaves the shared Domain running for its other owners.
func (l *List[K, V]) Close() {
	if l.ownDomain {
		l.domain.Close()
	}
}
