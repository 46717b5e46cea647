// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package buffer

import (
	"runtime"
	"sync"
)

// sizeClasses are the power-of-two buffer sizes a Pool allocates from. A
// request is rounded up to the smallest class that fits it.
var sizeClasses = [...]int{
	2 * 1024,
	4 * 1024,
	8 * 1024,
	16 * 1024,
	32 * 1024,
	64 * 1024,
	128 * 1024,
	256 * 1024,
	512 * 1024,
	1 * 1024 * 1024,
}

func sizeClassFor(size int) (class int, idx int) {
	for i, c := range sizeClasses {
		if size <= c {
			return c, i
		}
	}
	last := len(sizeClasses) - 1
	return sizeClasses[last], last
}

// Stats aggregates allocation/reuse counters for one Pool, exposed for
// observability by whatever ambient metrics layer the embedding
// application wires in.
type Stats struct {
	TotalAlloc int64
	TotalFree  int64
}

// Pool is a NUMA-tagged, size-classed sync.Pool wrapper: one subpool per
// size class, so a request for a small frame never reuses the backing
// array of a large one. NUMA node is advisory metadata carried on each
// Buffer (NUMANode()); this package does not itself allocate NUMA-local
// memory — wiring an allocator to an actual node's memory is an
// OS-specific concern the runtime treats as external (the same topology
// discovery a CPUSet's Pack placement would want, but out of scope here).
type Pool struct {
	numaNode int
	classes  [len(sizeClasses)]sync.Pool

	mu    sync.Mutex
	stats Stats
}

// NewPool constructs a Pool tagged with the given NUMA node (use 0, or the
// result of runtime.NumCPU()-derived placement, when no real topology
// discovery is available).
func NewPool(numaNode int) *Pool {
	p := &Pool{numaNode: numaNode}
	for i, c := range sizeClasses {
		c := c
		p.classes[i].New = func() any {
			return make([]byte, c)
		}
	}
	return p
}

// defaultPool is a process-wide Pool with no NUMA affinity, used by Get
// when no topology-aware Pool is available.
var defaultPool = NewPool(-1)

// Get returns a Buffer backed by the default, non-NUMA-aware pool.
func Get(size int) *Buffer { return defaultPool.Get(size) }

// Get returns a Buffer backed by the smallest size class that holds size
// bytes, tagged with this Pool's NUMA node, and refcount 1. A size above
// the largest class gets a largest-class (1 MiB) buffer, which grows on
// write.
func (p *Pool) Get(size int) *Buffer {
	class, idx := sizeClassFor(size)
	raw := p.classes[idx].Get().([]byte)
	if cap(raw) < class {
		raw = make([]byte, class)
	}
	raw = raw[:0]

	p.mu.Lock()
	p.stats.TotalAlloc++
	p.mu.Unlock()

	return &Buffer{
		data:     raw,
		refs:     1,
		pool:     p,
		class:    idx,
		numaNode: p.numaNode,
	}
}

func (p *Pool) put(b *Buffer) {
	if b.class < 0 {
		return
	}
	b.reader, b.writer, b.mark = 0, 0, 0
	p.classes[b.class].Put(b.data[:0])

	p.mu.Lock()
	p.stats.TotalFree++
	p.mu.Unlock()
}

// Stats returns a snapshot of this Pool's allocation counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// NUMANode returns the NUMA node this Pool is tagged with.
func (p *Pool) NUMANode() int { return p.numaNode }

// PoolSet manages one Pool per NUMA node, mirroring the per-node subpool
// layout of the teacher's buffer pool manager.
type PoolSet struct {
	pools []*Pool
}

// NewPoolSet constructs a PoolSet with one Pool per node, falling back to
// a single node when nodeCount <= 0 (e.g. no NUMA topology is known —
// topology discovery itself is out of scope for this runtime).
func NewPoolSet(nodeCount int) *PoolSet {
	if nodeCount <= 0 {
		nodeCount = 1
	}
	ps := &PoolSet{pools: make([]*Pool, nodeCount)}
	for i := range ps.pools {
		ps.pools[i] = NewPool(i)
	}
	return ps
}

// Node returns the Pool for the given NUMA node, clamping out-of-range
// ids into [0, len(pools)).
func (ps *PoolSet) Node(node int) *Pool {
	if node < 0 {
		node = 0
	}
	if node >= len(ps.pools) {
		node = len(ps.pools) - 1
	}
	return ps.pools[node]
}

// CurrentNode is a best-effort NUMA node guess when no real topology
// discovery is wired in: it spreads load across the configured node count
// using the process's current goroutine count modulo the node count, which
// is not NUMA locality but keeps allocations spread rather than all
// landing on node 0.
func (ps *PoolSet) CurrentNode() int {
	if len(ps.pools) <= 1 {
		return 0
	}
	return runtime.NumGoroutine() % len(ps.pools)
}
