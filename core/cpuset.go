// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import (
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/momentics/hioload-core/reactor"
)

// cpuOptions configures a CPU at construction time via CPUSetBuilder.
type cpuOptions struct {
	inboxCapacity int
	batchSize     int
	maxPollWait   time.Duration
	pin           bool
	pinCPU        int
	failSink      func(error)
}

func defaultCPUOptions() cpuOptions {
	return cpuOptions{
		inboxCapacity: 4096,
		batchSize:     256,
		maxPollWait:   50 * time.Millisecond,
		pin:           false,
		pinCPU:        -1,
		failSink:      nil,
	}
}

// Option configures a CPUSetBuilder-managed CPU. Options set on the
// builder apply to every CPU it constructs.
type Option func(*cpuOptions)

// WithBatchSize bounds how many local tasks a CPU runs per tick before
// checking timers and polling the selector, so a chatty compute loop can't
// starve I/O readiness.
func WithBatchSize(n int) Option {
	return func(o *cpuOptions) { o.batchSize = n }
}

// WithInboxCapacity sets the buffered capacity of a CPU's cross-CPU
// submission channel.
func WithInboxCapacity(n int) Option {
	return func(o *cpuOptions) { o.inboxCapacity = n }
}

// WithMaxPollWait bounds how long a CPU's selector poll blocks when its
// local queue is empty and no timer is armed.
func WithMaxPollWait(d time.Duration) Option {
	return func(o *cpuOptions) { o.maxPollWait = d }
}

// WithFailureSink installs the handler that receives uncaught panics from
// fire-and-forget tasks and selector errors. Without one, failures are
// logged through the standard log package (stderr by default).
func WithFailureSink(fn func(error)) Option {
	return func(o *cpuOptions) { o.failSink = fn }
}

// WithAffinity requests that each CPU's Run goroutine pin its OS thread to
// its own logical core id (the id passed to CPUSetBuilder.AddPack) once
// started.
func WithAffinity() Option {
	return func(o *cpuOptions) { o.pin = true }
}

// Pack is a group of CPUs presumed to share a NUMA node. It is immutable
// after CPUSetBuilder.Build and provides uniform-random placement for new
// connections.
type Pack struct {
	id   int
	cpus []*CPU
}

// ID returns the pack's id.
func (p *Pack) ID() int { return p.id }

// CPUs returns the pack's CPUs in construction order. The returned slice
// must not be mutated by callers.
func (p *Pack) CPUs() []*CPU { return p.cpus }

// GetCPU returns a uniformly random CPU from the pack.
//
// The source this runtime is modeled on computed this with
// nextInt(0, size-1), which for size >= 2 excludes the last CPU from ever
// being chosen — almost certainly a bug, since size-1 is meant to be an
// exclusive upper bound, not inclusive. rand.IntN(size) here uses the full
// pack size as the exclusive upper bound, so every CPU in the pack is
// reachable.
func (p *Pack) GetCPU() *CPU {
	if len(p.cpus) == 1 {
		return p.cpus[0]
	}
	return p.cpus[rand.IntN(len(p.cpus))]
}

// Register picks a CPU in the pack via GetCPU and schedules onAccept to run
// on that CPU, so whatever the caller constructs from conn (a Channel, in
// the networking layer built on top of core) is built on the CPU that will
// own it — no cross-CPU handoff of selector state or buffer ownership ever
// happens.
func (p *Pack) Register(conn net.Conn, onAccept func(conn net.Conn, target *CPU), onFailure func(error)) {
	target := p.GetCPU()
	target.submitTask(task{
		run: func() { onAccept(conn, target) },
		shutdown: func() {
			_ = conn.Close()
			onFailure(ErrShutdown)
		},
	})
}

// CPUSet is the immutable list of Packs, indexed by pack id, plus a map of
// every CPU by its flat id, for id lookup.
type CPUSet struct {
	packs []*Pack
	byID  map[int]*CPU
}

// Packs returns every pack in construction order.
func (s *CPUSet) Packs() []*Pack { return s.packs }

// CPU looks up a CPU by its flat id across the whole set.
func (s *CPUSet) CPU(id int) (*CPU, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Start launches every CPU's Run loop on its own goroutine (intended to
// become its own OS thread via runtime.LockOSThread, done inside Run). It
// must be called exactly once; there is no restart.
func (s *CPUSet) Start() {
	for _, c := range s.byID {
		go c.Run()
	}
}

// Halt stops every CPU in the set and waits for each to drain, failing all
// remaining pending futures with ErrShutdown.
func (s *CPUSet) Halt() {
	for _, c := range s.byID {
		c.Halt()
	}
}

// CPUSetBuilder assembles an immutable CPUSet out of packs of logical CPU
// ids. Call AddPack once per NUMA node (or once total, for a
// single-pack topology), then Build.
type CPUSetBuilder struct {
	packs   [][]int
	opts    cpuOptions
	nextID  int
	newSel  func() (reactor.Selector, error)
}

// NewCPUSetBuilder constructs a builder with the given default options
// applied to every CPU it produces.
func NewCPUSetBuilder(opts ...Option) *CPUSetBuilder {
	o := defaultCPUOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &CPUSetBuilder{opts: o, newSel: reactor.NewSelector}
}

// AddPack registers one pack's worth of logical CPU ids. The ids are used
// only as the affinity pin target when WithAffinity is set; each CPU's own
// id within the set is assigned by construction order, independent of the
// logical ids passed here.
func (b *CPUSetBuilder) AddPack(logicalCPUIDs ...int) *CPUSetBuilder {
	b.packs = append(b.packs, logicalCPUIDs)
	return b
}

// Build constructs the CPUSet: one Pack per AddPack call, one CPU per
// logical id within that pack, each with its own reactor.Selector.
func (b *CPUSetBuilder) Build() (*CPUSet, error) {
	set := &CPUSet{byID: make(map[int]*CPU)}
	for packIdx, ids := range b.packs {
		pack := &Pack{id: packIdx}
		set.packs = append(set.packs, pack)
		for _, logicalID := range ids {
			sel, err := b.newSel()
			if err != nil {
				return nil, fmt.Errorf("core: cpu %d: %w", b.nextID, err)
			}
			opts := b.opts
			opts.pinCPU = -1
			if opts.pin {
				opts.pinCPU = logicalID
			}
			c := newCPU(b.nextID, sel, opts)
			c.pck = pack
			pack.cpus = append(pack.cpus, c)
			set.byID[c.id] = c
			b.nextID++
		}
	}
	return set, nil
}
