package skiplist

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestConcurrentInsertPartition has each worker own a disjoint key range,
// so every insert is guaranteed to succeed exactly once -- a baseline
// check that concurrent CAS-based linking never drops or duplicates a
// write, matching the teacher's TestConcurrentOperations shape.
func TestConcurrentInsertPartition(t *testing.T) {
	const workers = 16
	const perWorker = 500

	l := New[int, int]()
	defer l.Close()

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				key := w*perWorker + i
				l.Insert(key, key*key)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, workers*perWorker, l.Len())
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			key := w*perWorker + i
			v, ok := l.Get(key)
			require.True(t, ok, "key %d missing", key)
			require.Equal(t, key*key, v)
		}
	}
}

// TestConcurrentRemoveSharedKeys has many goroutines race to remove the
// same shared key set; exactly one remover per key should see ok=true.
func TestConcurrentRemoveSharedKeys(t *testing.T) {
	const n = 2000
	const workers = 8

	l := New[int, int]()
	defer l.Close()

	for i := 0; i < n; i++ {
		l.Insert(i, i)
	}

	var successes int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < n; i++ {
				if _, ok := l.Remove(i); ok {
					atomic.AddInt64(&successes, 1)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int64(n), successes)
	require.Equal(t, 0, l.Len())
	require.True(t, l.IsEmpty())
}

// TestConcurrentMixedSharedKeys hammers a small key space with
// concurrent inserts, removes, and reads from every worker, and checks
// only structural invariants that hold regardless of interleaving: the
// list never panics, Len never goes negative, and every surviving key is
// still reachable via Get. This is the analogue of the teacher's
// TestConcurrentMixedOperations and TestConcurrentModificationABA.
func TestConcurrentMixedSharedKeys(t *testing.T) {
	const workers = 8
	const keySpace = 64

	l := New[int, int]()
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			i := 0
			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				key := (w + i) % keySpace
				switch i % 3 {
				case 0:
					l.Insert(key, key)
				case 1:
					l.Remove(key)
				case 2:
					l.Get(key)
				}
				i++
			}
		})
	}
	require.NoError(t, g.Wait())

	require.GreaterOrEqual(t, l.Len(), 0)
	for k, listVal := range l.All() {
		v, ok := l.Get(k)
		require.True(t, ok)
		require.Equal(t, k, v)
		require.Equal(t, k, listVal)
	}
}

// TestDomainReclaimsRemovedNodes checks the "no leak" property: once
// every retired node's protecting search has finished and a scan has
// run, the domain should not be holding any of them in limbo forever.
func TestDomainReclaimsRemovedNodes(t *testing.T) {
	l := New[int, int](WithSeed[int, int](99))
	defer l.Close()

	const n = 5000
	for i := 0; i < n; i++ {
		l.Insert(i, i)
	}
	for i := 0; i < n; i++ {
		l.Remove(i)
	}

	l.domain.Scan()
	require.Equal(t, 0, l.domain.Pending(), "domain should have reclaimed every removed node")
}

// TestSharedDomainAcrossLists exercises WithDomain: two lists retiring
// into the same domain, closed exactly once by whichever party created
// it, with goleak confirming the sweep goroutine still exits cleanly.
func TestSharedDomainAcrossLists(t *testing.T) {
	domain := NewDomain[int, string]()
	defer domain.Close()

	a := New[int, string](WithDomain[int, string](domain))
	b := New[int, string](WithDomain[int, string](domain))
	defer a.Close() // no-op: a does not own domain
	defer b.Close() // no-op: b does not own domain

	for i := 0; i < 100; i++ {
		a.Insert(i, "a")
		b.Insert(i, "b")
	}
	for i := 0; i < 100; i++ {
		a.Remove(i)
	}

	require.Equal(t, 0, a.Len())
	require.Equal(t, 100, b.Len())
}
