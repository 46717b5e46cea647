// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import (
	"fmt"
	"log"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-core/affinity"
	"github.com/momentics/hioload-core/reactor"
)

// Void is the payload-less result of Repeat/Loop, standing in for the
// domain's Future<Void>.
type Void struct{}

// task is one unit of work carried by a CPU's local queue or cross-CPU
// inbox. shutdown, when non-nil, is invoked instead of run if the CPU
// halts before the task executes.
type task struct {
	run      func()
	shutdown func()
}

// CPU is the event loop owning a task queue, a timer heap, and a selector,
// plus every Future, Channel and InputStream/OutputStream constructed on
// it. Only the goroutine running CPU.Run may mutate local, timers, or any
// resource owned by this CPU; all other interaction goes through the
// cross-CPU submission primitive (submitTask / the inbox channel), which
// is the one atomically-safe crossing point the concurrency model allows.
type CPU struct {
	id  int
	pck *Pack // set once, at CPUSet construction

	sel reactor.Selector

	inbox chan task
	local []task

	timers *timerWheel

	// running is written from arbitrary caller goroutines (submitTask,
	// Halt) while local/timers are touched only by this CPU's own Run
	// goroutine; the pad keeps the atomic off the same cache line as that
	// hot owner-only state.
	_       cpu.CacheLinePad
	running atomic.Bool
	doneCh  chan struct{}

	batchSize   int
	maxPollWait time.Duration
	pinCPU      int // -1 if no affinity pinning requested

	failSink func(error)

	// listenersMu guards listeners, since Listen (arbitrary caller
	// goroutines) and Halt can race to append/close it concurrently.
	listenersMu sync.Mutex
	listeners   []net.Listener
}

// ID returns the CPU's logical id within its CPUSet.
func (c *CPU) ID() int { return c.id }

// Pack returns the NUMA pack this CPU belongs to.
func (c *CPU) Pack() *Pack { return c.pck }

// Selector exposes the CPU's underlying reactor.Selector so higher-level
// packages (e.g. a stream/channel layer) can register socket readiness
// callbacks directly, without core needing to know anything about sockets,
// buffers, or streams.
func (c *CPU) Selector() reactor.Selector { return c.sel }

func newCPU(id int, sel reactor.Selector, opts cpuOptions) *CPU {
	c := &CPU{
		id:          id,
		sel:         sel,
		inbox:       make(chan task, opts.inboxCapacity),
		timers:      newTimerWheel(),
		doneCh:      make(chan struct{}),
		batchSize:   opts.batchSize,
		maxPollWait: opts.maxPollWait,
		pinCPU:      opts.pinCPU,
		failSink:    opts.failSink,
	}
	// Accept submissions from construction on, so tasks handed over before
	// the Run goroutine starts are queued rather than shut down, and a Halt
	// that precedes Run makes Run exit at once.
	c.running.Store(true)
	return c
}

// Run drives the CPU's event loop until Halt is called. It is meant to be
// the entire body of the OS thread dedicated to this CPU; it never returns
// until halted.
//
// One tick: drain the cross-CPU inbox, run a bounded batch of local tasks,
// expire due timers into the local queue, then poll the selector — blocking
// only when the local queue is empty, for at most the time remaining until
// the next timer deadline.
func (c *CPU) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if c.pinCPU >= 0 {
		if err := affinity.SetAffinity(c.pinCPU); err != nil {
			c.reportFailure(fmt.Errorf("core: cpu %d: affinity pin failed: %w", c.id, err))
		}
	}

	defer close(c.doneCh)

	for c.running.Load() {
		c.drainInbox()
		c.runBatch()
		c.expireTimers()
		c.pollSelector()
	}
	c.shutdownSweep()
}

func (c *CPU) drainInbox() {
	for {
		select {
		case t := <-c.inbox:
			c.local = append(c.local, t)
		default:
			return
		}
	}
}

func (c *CPU) runBatch() {
	n := len(c.local)
	if n > c.batchSize {
		n = c.batchSize
	}
	for i := 0; i < n; i++ {
		t := c.local[0]
		c.local = c.local[1:]
		c.runTask(t)
	}
	if len(c.local) == 0 {
		c.local = nil
	}
}

func (c *CPU) runTask(t task) {
	defer func() {
		if r := recover(); r != nil {
			c.reportFailure(fmt.Errorf("core: cpu %d: task panic: %v", c.id, r))
		}
	}()
	t.run()
}

func (c *CPU) expireTimers() {
	for _, fire := range c.timers.expireDue(time.Now()) {
		c.local = append(c.local, task{run: fire})
	}
}

func (c *CPU) pollSelector() {
	timeout := c.pollTimeout()
	if _, err := c.sel.Poll(timeout); err != nil {
		c.reportFailure(fmt.Errorf("core: cpu %d: selector poll: %w", c.id, err))
	}
}

func (c *CPU) pollTimeout() time.Duration {
	if len(c.local) > 0 {
		return 0
	}
	deadline, ok := c.timers.nextDeadline()
	if !ok {
		return c.maxPollWait
	}
	wait := time.Until(deadline)
	if wait < 0 {
		wait = 0
	}
	if wait > c.maxPollWait {
		wait = c.maxPollWait
	}
	return wait
}

// shutdownSweep runs once, after the loop exits: it drains whatever is left
// in the inbox and local queue and fails their futures, then does the same
// for every timer still armed.
func (c *CPU) shutdownSweep() {
	c.drainInbox()
	for _, t := range c.local {
		if t.shutdown != nil {
			t.shutdown()
		}
	}
	c.local = nil
	for _, shutdown := range c.timers.drainAll() {
		shutdown()
	}
}

// WrapCallback wraps a reactor.Callback so a panic inside it is recovered
// and routed to this CPU's failure sink instead of propagating out of
// Poll and killing the event loop goroutine — the same discipline runTask
// applies to queued tasks. Higher-level packages that register selector
// callbacks on this CPU's Selector (e.g. netio.Channel) should wrap them
// with this before calling Selector.Register.
func (c *CPU) WrapCallback(cb reactor.Callback) reactor.Callback {
	return func(fd uintptr, ready reactor.Interest) {
		defer func() {
			if r := recover(); r != nil {
				c.reportFailure(fmt.Errorf("core: cpu %d: selector callback panic: %v", c.id, r))
			}
		}()
		cb(fd, ready)
	}
}

func (c *CPU) reportFailure(err error) {
	if c.failSink != nil {
		c.failSink(err)
		return
	}
	log.Printf("hioload-core: cpu %d: %v", c.id, err)
}

// enqueueLocal appends a task directly to the local queue. It is only safe
// to call from within this CPU's own Run goroutine — continuation dispatch
// and internal re-scheduling (repeat/loop) use it as the no-channel fast
// path the component design calls for.
func (c *CPU) enqueueLocal(t task) {
	c.local = append(c.local, t)
}

// submitTask is the cross-CPU-safe submission primitive: an external
// goroutine (or another CPU) hands off a task through the inbox channel,
// which is Go's native MPSC-safe mechanism. If the CPU has already halted,
// the task's shutdown callback runs immediately instead of being queued.
func (c *CPU) submitTask(t task) {
	if !c.running.Load() {
		if t.shutdown != nil {
			t.shutdown()
		}
		return
	}
	select {
	case c.inbox <- t:
	default:
		select {
		case c.inbox <- t:
		case <-c.doneCh:
			if t.shutdown != nil {
				t.shutdown()
			}
		}
	}
}

// submitCrossCPU is a convenience wrapper for plain fire-and-forget
// cross-CPU closures with no associated future to fail on shutdown.
func (c *CPU) submitCrossCPU(fn func()) {
	c.submitTask(task{run: fn})
}

// Halt sets running=false, closes every listener opened via Listen, and
// waits for the loop to exit; every future still pending on this CPU
// (queued tasks, armed timers) is then failed with ErrShutdown. There is
// no restart.
func (c *CPU) Halt() {
	c.running.Store(false)
	c.closeListeners()
	<-c.doneCh
}

func (c *CPU) closeListeners() {
	c.listenersMu.Lock()
	ls := c.listeners
	c.listeners = nil
	c.listenersMu.Unlock()
	for _, ln := range ls {
		_ = ln.Close()
	}
}

// Schedule enqueues fn on cpu — locally if already running on cpu's own
// goroutine is not detectable cheaply in Go, so Schedule always uses the
// cross-CPU-safe inbox path; the returned Future resolves with fn's result
// on cpu once it runs.
func Schedule[T any](c *CPU, fn func() (T, error)) *Future[T] {
	f := NewFuture[T](c)
	c.submitTask(task{
		run: func() {
			v, err := fn()
			if err != nil {
				_ = f.SetFailure(err)
			} else {
				_ = f.SetValue(v)
			}
		},
		shutdown: func() { _ = f.SetFailure(ErrShutdown) },
	})
	return f
}

// Repeat runs step repeatedly: step returns a Future<Status>; on CONTINUE,
// Repeat re-schedules itself via the task queue (never by recursion, so the
// stack never grows and I/O polling is never starved); on STOP or
// STOP_WITH, the returned Future<Void> resolves.
func Repeat(c *CPU, step func() *Future[Status]) *Future[Void] {
	out := NewFuture[Void](c)
	var iterate func()
	iterate = func() {
		sf := step()
		sf.OnSuccess(func(s Status) {
			if s.Kind() == Continue {
				c.enqueueLocal(task{run: iterate, shutdown: func() { _ = out.SetFailure(ErrShutdown) }})
				return
			}
			_ = out.SetValue(Void{})
		})
		sf.OnFailure(func(err error) {
			_ = out.SetFailure(err)
		})
	}
	c.submitTask(task{run: iterate, shutdown: func() { _ = out.SetFailure(ErrShutdown) }})
	return out
}

// Loop is the repeat variant for channel-style consumers:
// step returns a Future<T>; on its completion the step is re-invoked.
// Loop terminates (failing the returned Future<Void>) when the step's
// future fails.
func Loop[T any](c *CPU, step func() *Future[T]) *Future[Void] {
	out := NewFuture[Void](c)
	var iterate func()
	iterate = func() {
		sf := step()
		sf.OnSuccess(func(T) {
			c.enqueueLocal(task{run: iterate, shutdown: func() { _ = out.SetFailure(ErrShutdown) }})
		})
		sf.OnFailure(func(err error) {
			_ = out.SetFailure(err)
		})
	}
	c.submitTask(task{run: iterate, shutdown: func() { _ = out.SetFailure(ErrShutdown) }})
	return out
}

// Sleep registers (now+delay, fn) in the timer heap; the loop checks the
// heap every tick and moves due entries to the task queue, guaranteeing fn
// runs at or after the deadline, never before.
func Sleep[T any](c *CPU, delay time.Duration, fn func() (T, error)) *Future[T] {
	f := NewFuture[T](c)
	deadline := time.Now().Add(delay)
	arm := func() {
		c.timers.arm(deadline, func() {
			v, err := fn()
			if err != nil {
				_ = f.SetFailure(err)
			} else {
				_ = f.SetValue(v)
			}
		}, func() { _ = f.SetFailure(ErrShutdown) })
	}
	// Arming must happen on c's own goroutine: the timer heap is
	// unsynchronized, CPU-owned state.
	c.submitTask(task{run: arm, shutdown: func() { _ = f.SetFailure(ErrShutdown) }})
	return f
}

// Sequence collects the results of futures, which may be owned by
// different CPUs, in input order on c. The first input failure (by index,
// not completion order) terminates the result; every future is still
// observed so late failures don't leak a dangling continuation.
func Sequence[T any](c *CPU, futures []*Future[T]) *Future[[]T] {
	out := NewFuture[[]T](c)
	n := len(futures)
	if n == 0 {
		_ = out.SetValue(nil)
		return out
	}

	var mu sync.Mutex
	results := make([]T, n)
	remaining := n
	firstFailIdx := -1
	var firstFailErr error

	finish := func() {
		mu.Lock()
		idx := firstFailIdx
		res := append([]T(nil), results...)
		err := firstFailErr
		mu.Unlock()
		c.submitTask(task{
			run: func() {
				if idx >= 0 {
					_ = out.SetFailure(err)
				} else {
					_ = out.SetValue(res)
				}
			},
			shutdown: func() { _ = out.SetFailure(ErrShutdown) },
		})
	}

	for i, f := range futures {
		i, f := i, f
		f.OnSuccess(func(v T) {
			mu.Lock()
			results[i] = v
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				finish()
			}
		})
		f.OnFailure(func(err error) {
			mu.Lock()
			if firstFailIdx < 0 || i < firstFailIdx {
				firstFailIdx = i
				firstFailErr = err
			}
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				finish()
			}
		})
	}
	return out
}

// Listen binds and listens on addr on this CPU. Each accepted connection is
// handed to onAccept together with the CPU it was placed on (via
// Pack.Register, which may route it to any CPU in the same pack); accept
// errors go to onFailure. Listen itself does not know about Channels or any
// other stream abstraction — placement and construction are the caller's
// concern, kept that way so core has no dependency on a higher-level
// networking package. The listener is tracked and closed by Halt, so the
// accept goroutine does not outlive the CPU.
func (c *CPU) Listen(addr string, onAccept func(conn net.Conn, target *CPU), onFailure func(error)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("core: listen %s: %w", addr, err)
	}
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, ln)
	c.listenersMu.Unlock()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				onFailure(err)
				return
			}
			if c.pck == nil {
				onAccept(conn, c)
				continue
			}
			c.pck.Register(conn, onAccept, onFailure)
		}
	}()
	return nil
}
