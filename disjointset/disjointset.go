// Package disjointset implements C1, the parallel disjoint-set engine of
// a lock-free union-by-rank disjoint-set forest over a caller-supplied,
// contiguous 128-bit-per-element buffer (here: a flat []uint64 of length
// 2N, element x occupying words [2x, 2x+1] = [parent, rank]).
//
// unite/find never take a lock; correctness comes from the CAS retry
// loop and the algorithmic properties of union-find, not from memory
// ordering stronger than acquire/release on the CAS itself.
package disjointset

import (
	"fmt"
	"sync/atomic"

	"github.com/exascience/pargo/parallel"

	"github.com/mudesheng/markergraph/internal/errs"
)

// MaxConvergePasses is the hard cap on convergence sweeps: exceeding it
// without every element reaching a fixed point is a fatal error.
const MaxConvergePasses = 10

// Engine operates directly on a caller-provided buffer of 2N 64-bit
// words. The caller owns allocation (a plain slice in tests, a
// bigarray.Uint64Array-backed slice for the memory-mapped "tmp-DisjointSets"
// table in production).
type Engine struct {
	buf []uint64 // len == 2*n; buf[2x]=parent(x), buf[2x+1]=rank(x)
	n   uint64
}

// NewEngine wraps buf (len(buf) must be even) as a disjoint-set of
// len(buf)/2 singleton elements, each initially its own parent with
// rank 0.
func NewEngine(buf []uint64) (*Engine, error) {
	if len(buf)%2 != 0 {
		return nil, errs.Algorithmic("DisjointSets", "buffer length must be 2*N")
	}
	n := uint64(len(buf) / 2)
	e := &Engine{buf: buf, n: n}
	for x := uint64(0); x < n; x++ {
		e.buf[2*x] = x
		e.buf[2*x+1] = 0
	}
	return e, nil
}

// Attach wraps an already-initialized buffer (e.g. reopened from disk)
// without resetting it to singletons.
func Attach(buf []uint64) (*Engine, error) {
	if len(buf)%2 != 0 {
		return nil, errs.Algorithmic("DisjointSets", "buffer length must be 2*N")
	}
	return &Engine{buf: buf, n: uint64(len(buf) / 2)}, nil
}

func (e *Engine) N() uint64 { return e.n }

// Parent is a plain 64-bit load of the low half of x's slot.
func (e *Engine) Parent(x uint64) uint64 {
	return atomic.LoadUint64(&e.buf[2*x])
}

func (e *Engine) rank(x uint64) uint64 {
	return atomic.LoadUint64(&e.buf[2*x+1])
}

// findPathHalving is the lightweight find used internally by Unite:
// each step replaces x's parent with its grandparent (path halving),
// which is safe to race on because every writer stores a value that is
// at least as close to the true root as what was there before.
func (e *Engine) findPathHalving(x uint64) uint64 {
	for {
		p := atomic.LoadUint64(&e.buf[2*x])
		if p == x {
			return x
		}
		gp := atomic.LoadUint64(&e.buf[2*p])
		atomic.CompareAndSwapUint64(&e.buf[2*x], p, gp)
		x = gp
	}
}

// Find follows parent until a fixed point. If compress is true, the
// root is written back into every intermediate parent with a relaxed
// store; this is idempotent, so races between concurrent compressors
// are safe (all winners store the same root).
func (e *Engine) Find(x uint64, compress bool) uint64 {
	root := x
	for {
		p := atomic.LoadUint64(&e.buf[2*root])
		if p == root {
			break
		}
		root = p
	}
	if compress {
		cur := x
		for cur != root {
			next := atomic.LoadUint64(&e.buf[2*cur])
			atomic.StoreUint64(&e.buf[2*cur], root)
			cur = next
		}
	}
	return root
}

// Unite performs a lock-free union by rank of the sets containing a and
// b: locate roots with path-halving find, compare ranks, CAS the
// smaller root's parent to the larger; on a rank tie, the larger id
// wins deterministically and its rank is bumped via CAS. The whole
// operation retries on CAS contention.
func (e *Engine) Unite(a, b uint64) {
	for {
		ra := e.findPathHalving(a)
		rb := e.findPathHalving(b)
		if ra == rb {
			return
		}
		rankA, rankB := e.rank(ra), e.rank(rb)

		var winner, loser uint64
		tie := rankA == rankB
		switch {
		case rankA > rankB:
			winner, loser = ra, rb
		case rankB > rankA:
			winner, loser = rb, ra
		default:
			if ra > rb {
				winner, loser = ra, rb
			} else {
				winner, loser = rb, ra
			}
		}

		if !atomic.CompareAndSwapUint64(&e.buf[2*loser], loser, winner) {
			continue // someone else moved loser's parent first; retry
		}
		if tie {
			w := atomic.LoadUint64(&e.buf[2*winner+1])
			atomic.CompareAndSwapUint64(&e.buf[2*winner+1], w, w+1)
		}
		return
	}
}

// Converge runs repeated full-compression Find passes across all
// elements in parallel until a pass changes no slot's parent, using
// dynamic work-stealing batches. Two or three passes
// suffice in practice; MaxConvergePasses without convergence is fatal.
func (e *Engine) Converge(batchSize int) (passes int, err error) {
	n := int(e.n)
	if n == 0 {
		return 0, nil
	}
	for pass := 1; pass <= MaxConvergePasses; pass++ {
		var changed int64
		parallel.Range(0, n, batchSize, func(low, high int) {
			var local int64
			for x := low; x < high; x++ {
				before := atomic.LoadUint64(&e.buf[2*uint64(x)])
				root := e.Find(uint64(x), true)
				if root != before {
					local++
				}
			}
			if local > 0 {
				atomic.AddInt64(&changed, local)
			}
		})
		if changed == 0 {
			return pass, nil
		}
	}
	return MaxConvergePasses, errs.Algorithmic("DisjointSets",
		fmt.Sprintf("parent information did not converge in %d iterations", MaxConvergePasses))
}

// Verify asserts parent(x) == find(x) for every element, as required
// after finalization.
func (e *Engine) Verify(batchSize int) error {
	n := int(e.n)
	var bad int64
	parallel.Range(0, n, batchSize, func(low, high int) {
		var local int64
		for x := low; x < high; x++ {
			if e.Parent(uint64(x)) != e.Find(uint64(x), false) {
				local++
			}
		}
		if local > 0 {
			atomic.AddInt64(&bad, local)
		}
	})
	if bad > 0 {
		return errs.Algorithmic("DisjointSets",
			fmt.Sprintf("%d element(s) fail parent(x) == find(x) after convergence", bad))
	}
	return nil
}

// CompactParents overwrites the first N words of the buffer with the
// (converged) parent of every element, discarding the rank half. Safe
// to call in place: for every i, the read position 2i is always >= the
// write position i, so a single ascending pass never overwrites data it
// has not yet read.
func (e *Engine) CompactParents() []uint64 {
	buf := e.buf
	n := e.n
	for i := uint64(0); i < n; i++ {
		buf[i] = buf[2*i]
	}
	return buf[:n]
}
