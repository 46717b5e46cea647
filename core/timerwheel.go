// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import (
	"container/heap"
	"time"
)

// timerEntry is one scheduled callback in a CPU's timer heap.
type timerEntry struct {
	deadline time.Time
	seq      uint64 // insertion order, breaks deadline ties FIFO
	fire     func()
	shutdown func() // invoked instead of fire if the CPU halts before the deadline
}

// timerHeap is a min-heap of timerEntry ordered by deadline, with seq as a
// tiebreaker so same-deadline entries fire in registration order. Deletion
// is never required: a cancelled sleep (there is no cancellation API) is
// simply never armed, and re-armed timers insert a fresh entry.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// timerWheel is the per-CPU min-heap of deadline-ordered callbacks.
// Despite the name (kept from the domain's "timer wheel" terminology), the
// implementation is a binary heap via container/heap, which is the natural
// idiomatic-Go min-heap and needs no fixed resolution buckets.
type timerWheel struct {
	h       timerHeap
	nextSeq uint64
}

func newTimerWheel() *timerWheel {
	tw := &timerWheel{}
	heap.Init(&tw.h)
	return tw
}

// arm schedules fire to run at deadline and returns nothing: there is no
// cancellation token, matching the no-cancellation-before-deadline
// guarantee the runtime makes. shutdown is invoked instead of fire if the
// CPU halts with this entry still armed.
func (tw *timerWheel) arm(deadline time.Time, fire func(), shutdown func()) {
	tw.nextSeq++
	heap.Push(&tw.h, &timerEntry{deadline: deadline, seq: tw.nextSeq, fire: fire, shutdown: shutdown})
}

// nextDeadline reports the earliest armed deadline, and whether any timer
// is armed at all.
func (tw *timerWheel) nextDeadline() (time.Time, bool) {
	if tw.h.Len() == 0 {
		return time.Time{}, false
	}
	return tw.h[0].deadline, true
}

// expireDue pops every entry whose deadline is <= now and returns their
// fire callbacks in deadline order, ready to be pushed onto the task queue.
func (tw *timerWheel) expireDue(now time.Time) []func() {
	var due []func()
	for tw.h.Len() > 0 && !tw.h[0].deadline.After(now) {
		e := heap.Pop(&tw.h).(*timerEntry)
		due = append(due, e.fire)
	}
	return due
}

// drainAll removes every armed entry and returns their shutdown callbacks,
// used by halt() to fail the futures of timers that never got to fire.
func (tw *timerWheel) drainAll() []func() {
	var all []func()
	for tw.h.Len() > 0 {
		e := heap.Pop(&tw.h).(*timerEntry)
		if e.shutdown != nil {
			all = append(all, e.shutdown)
		}
	}
	return all
}
