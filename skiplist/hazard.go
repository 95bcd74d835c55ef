package skiplist

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// defaultSweepInterval is how often a Domain's background goroutine scans
// for retired nodes it can drop, absent an explicit WithSweepInterval.
const defaultSweepInterval = 50 * time.Millisecond

// Record is one hazard-pointer slot: a goroutine announces, via protect,
// that it is about to dereference the node named here, so the owning
// Domain must not let that node's last reference disappear from its own
// bookkeeping until the Record is cleared or released. Records are pooled and reused --
// spec.md 4.3 describes "a handle object [that] bundles a hazard slot with
// a raw node pointer ... dropping the handle releases the slot."
type Record[K any, V any] struct {
	slot atomic.Pointer[node[K, V]]
}

func (r *Record[K, V]) protect(n *node[K, V]) {
	r.slot.Store(n)
}

func (r *Record[K, V]) clear() {
	r.slot.Store(nil)
}

// Domain is a hazard-pointer reclamation domain: a registry of live
// Records plus a limbo list of retired nodes, swept periodically (and on
// demand) so that a node's memory is only released -- to Go's garbage
// collector, which is the actual memory-safety backstop in this port, see
// DESIGN.md -- once no Record names it. One Domain can be shared by
// several lists via WithDomain, or each List can own a private one (both
// are sanctioned by spec.md 6, "a global domain is acceptable; a per-list
// domain is allowed").
//
// No hazard-pointer library exists anywhere in the retrieved corpus (the
// original's haphazard crate is Rust-only); this is grounded instead on
// the documented contract of original_source's internal/utils/mod.rs Can
// (a HazardPointerArray wrapper) and on the per-thread hazard-pointer
// array and epoch sweep in other_examples' osakka-entitydb lock-free
// string interner.
type Domain[K any, V any] struct {
	mu   sync.Mutex
	all  []*Record[K, V]
	free []*Record[K, V]

	retiredMu sync.Mutex
	retired   []*node[K, V]

	sweepInterval time.Duration
	logger        *zap.Logger

	stop chan struct{}
	done chan struct{}

	retiredHighWater int
}

// NewDomain creates a Domain whose background sweep runs at
// defaultSweepInterval. Call Close when the domain is no longer needed so
// its sweep goroutine exits (tests verify this with go.uber.org/goleak).
func NewDomain[K any, V any](opts ...DomainOption) *Domain[K, V] {
	cfg := domainConfig{
		sweepInterval:    defaultSweepInterval,
		logger:           zap.NewNop(),
		retiredHighWater: 4096,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	d := &Domain[K, V]{
		sweepInterval:    cfg.sweepInterval,
		logger:           cfg.logger,
		retiredHighWater: cfg.retiredHighWater,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	go d.run()
	return d
}

// DomainOption configures a Domain at construction time.
type DomainOption func(*domainConfig)

type domainConfig struct {
	sweepInterval    time.Duration
	logger           *zap.Logger
	retiredHighWater int
}

// WithSweepInterval overrides how often the Domain's background goroutine
// scans for reclaimable nodes.
func WithSweepInterval(d time.Duration) DomainOption {
	return func(c *domainConfig) { c.sweepInterval = d }
}

// WithDomainLogger attaches a structured logger for reclamation
// diagnostics (retired-garbage watermark warnings). Defaults to a no-op
// logger, matching spec.md 7's "never on the happy path."
func WithDomainLogger(logger *zap.Logger) DomainOption {
	return func(c *domainConfig) { c.logger = logger }
}

func (d *Domain[K, V]) acquire() *Record[K, V] {
	d.mu.Lock()
	n := len(d.free)
	if n == 0 {
		d.mu.Unlock()
		r := &Record[K, V]{}
		d.mu.Lock()
		d.all = append(d.all, r)
		d.mu.Unlock()
		return r
	}
	r := d.free[n-1]
	d.free = d.free[:n-1]
	d.mu.Unlock()
	return r
}

func (d *Domain[K, V]) release(r *Record[K, V]) {
	r.clear()
	d.mu.Lock()
	d.free = append(d.free, r)
	d.mu.Unlock()
}

// protectedRef pairs a protected node with the Record guarding it. The
// zero value (nil, nil) represents a protected nil successor.
type protectedRef[K any, V any] struct {
	n   *node[K, V]
	rec *Record[K, V]
}

// protectRef acquires a Record protecting the node currently published at
// lv, re-reading lv to confirm the pointer did not change between the two
// loads (spec.md 4.3's "write, then re-read the source to confirm the
// pointer is still reachable") -- mirroring tagged.rs's from_maybe_tagged
// spin. It loops internally on a torn read rather than reporting failure,
// since the caller has no better recovery than "try again".
func (d *Domain[K, V]) protectRef(lv *level[K, V]) (ref protectedRef[K, V], tag bool, ok bool) {
	for {
		first, firstTag := lv.load()
		if first == nil {
			// A nil successor can still be tagged (the tail-most node at
			// this level, logically removed): the caller must see that
			// tag, or a removed node with no successor would look like a
			// perfectly live anchor forever.
			return protectedRef[K, V]{}, firstTag, true
		}
		rec := d.acquire()
		rec.protect(first)
		second, tag2 := lv.load()
		if second != first {
			d.release(rec)
			continue
		}
		return protectedRef[K, V]{n: first, rec: rec}, tag2, true
	}
}

func (d *Domain[K, V]) releaseRef(ref protectedRef[K, V]) {
	if ref.rec != nil {
		d.release(ref.rec)
	}
}

// retire submits a node for deferred reclamation. The node must already be
// logically removed and fully unlinked (refs == 0) -- callers enforce
// this, matching the Removed_tagged -> Retired transition in spec.md's
// node state machine.
func (d *Domain[K, V]) retire(n *node[K, V]) {
	d.retiredMu.Lock()
	d.retired = append(d.retired, n)
	count := len(d.retired)
	d.retiredMu.Unlock()

	if count > d.retiredHighWater {
		d.logger.Warn("skiplist: reclamation domain garbage above watermark",
			zap.Int("retired", count), zap.Int("watermark", d.retiredHighWater))
		d.Scan()
	}
}

// Scan drops every retired node no Record currently protects, letting
// Go's garbage collector reclaim it once nothing else references it. This
// is the Retired -> Freed transition; it runs periodically on a
// background goroutine and can also be called synchronously (e.g. after
// Close, to flush before shutdown).
func (d *Domain[K, V]) Scan() {
	d.retiredMu.Lock()
	retired := d.retired
	d.retired = nil
	d.retiredMu.Unlock()

	if len(retired) == 0 {
		return
	}

	protected := d.liveSet()

	var kept []*node[K, V]
	for _, n := range retired {
		if _, ok := protected[n]; ok {
			kept = append(kept, n)
		}
	}

	if len(kept) > 0 {
		d.retiredMu.Lock()
		d.retired = append(kept, d.retired...)
		d.retiredMu.Unlock()
	}
}

func (d *Domain[K, V]) liveSet() map[*node[K, V]]struct{} {
	d.mu.Lock()
	records := make([]*Record[K, V], len(d.all))
	copy(records, d.all)
	d.mu.Unlock()

	live := make(map[*node[K, V]]struct{}, len(records))
	for _, r := range records {
		if p := r.slot.Load(); p != nil {
			live[p] = struct{}{}
		}
	}
	return live
}

func (d *Domain[K, V]) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Scan()
		case <-d.stop:
			return
		}
	}
}

// Close stops the background sweep goroutine and performs one final scan.
// Scan remains safe to call after Close; calling Close a second time
// panics.
func (d *Domain[K, V]) Close() {
	close(d.stop)
	<-d.done
	d.Scan()
}

// Pending reports how many retired nodes the domain is still holding,
// awaiting a scan that finds them unprotected. Exposed for tests asserting
// the "no leak" property (spec.md 8, property 6).
func (d *Domain[K, V]) Pending() int {
	d.retiredMu.Lock()
	defer d.retiredMu.Unlock()
	return len(d.retired)
}
