// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"os"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-core/buffer"
	"github.com/momentics/hioload-core/core"
)

// OutputStream owns the FIFO transmit queue for one socket. At most one
// task is active (at the head) at a time; enqueued tasks flush in order.
type OutputStream struct {
	cpu *core.CPU
	fd  uintptr
	q   *queue.Queue

	setWriteInterest func(bool)
	onFatal          func(error)
	closed           bool
}

func newOutputStream(cpu *core.CPU, fd uintptr, setWriteInterest func(bool), onFatal func(error)) *OutputStream {
	return &OutputStream{
		cpu:              cpu,
		fd:               fd,
		q:                queue.New(),
		setWriteInterest: setWriteInterest,
		onFatal:          onFatal,
	}
}

// enqueue is the shared entry point for every write path. If the queue is
// currently empty, it attempts compute synchronously before queueing at
// all — the fast path: a task that completes without blocking is never
// queued and never toggles WRITE interest.
func (o *OutputStream) enqueue(t txTask) {
	if o.closed {
		t.finish(core.ErrClosed)
		return
	}
	if o.q.Length() == 0 {
		done, err := t.compute(o.fd)
		if err != nil {
			t.finish(err)
			o.reportFatal(err)
			return
		}
		if done {
			t.finish(nil)
			return
		}
		o.q.Add(t)
		o.setWriteInterest(true)
		return
	}
	o.q.Add(t)
}

// triggerTx is invoked by the Channel when the selector reports the socket
// writable. It pops completed tasks from the head until one reports
// would-block or the queue drains, toggling WRITE interest only on the
// empty<->non-empty transition.
func (o *OutputStream) triggerTx() {
	for o.q.Length() > 0 {
		head := o.q.Peek().(txTask)
		done, err := head.compute(o.fd)
		if err != nil {
			o.q.Remove()
			head.finish(err)
			o.reportFatal(err)
			return
		}
		if !done {
			o.setWriteInterest(true)
			return
		}
		o.q.Remove()
		head.finish(nil)
	}
	o.setWriteInterest(false)
}

func (o *OutputStream) reportFatal(err error) {
	if o.onFatal != nil {
		o.onFatal(err)
	}
}

// WriteBytes enqueues a fire-and-forget transmit of p.
func (o *OutputStream) WriteBytes(p []byte) {
	o.enqueue(&byteTxTask{buf: buffer.NewBuffer(append([]byte(nil), p...))})
}

// WriteShort enqueues a fire-and-forget big-endian uint16.
func (o *OutputStream) WriteShort(v uint16) {
	b := buffer.NewBuffer(nil)
	b.WriteShort(v)
	o.enqueue(&byteTxTask{buf: b})
}

// WriteInt enqueues a fire-and-forget big-endian uint32.
func (o *OutputStream) WriteInt(v uint32) {
	b := buffer.NewBuffer(nil)
	b.WriteInt(v)
	o.enqueue(&byteTxTask{buf: b})
}

// WriteLong enqueues a fire-and-forget big-endian uint64.
func (o *OutputStream) WriteLong(v uint64) {
	b := buffer.NewBuffer(nil)
	b.WriteLong(v)
	o.enqueue(&byteTxTask{buf: b})
}

// WriteFloat enqueues a fire-and-forget big-endian float32.
func (o *OutputStream) WriteFloat(v float32) {
	b := buffer.NewBuffer(nil)
	b.WriteFloat(v)
	o.enqueue(&byteTxTask{buf: b})
}

// WriteDouble enqueues a fire-and-forget big-endian float64.
func (o *OutputStream) WriteDouble(v float64) {
	b := buffer.NewBuffer(nil)
	b.WriteDouble(v)
	o.enqueue(&byteTxTask{buf: b})
}

// Flush enqueues a zero-length barrier task whose future resolves once the
// queue — including every write enqueued before this call — has drained.
func (o *OutputStream) Flush() *core.Future[core.Void] {
	f := core.NewFuture[core.Void](o.cpu)
	o.enqueue(&byteTxTask{
		buf: buffer.NewBuffer(nil),
		onDone: func(_ int64, err error) {
			if err != nil {
				_ = f.SetFailure(err)
			} else {
				_ = f.SetValue(core.Void{})
			}
		},
	})
	return f
}

// WriteAndFlush enqueues buf and returns a Future resolved with the total
// number of bytes written once the task completes. Ownership of buf passes
// to the queue: it is released when the task is popped or the stream is
// closed.
func (o *OutputStream) WriteAndFlush(buf *buffer.Buffer) *core.Future[int64] {
	f := core.NewFuture[int64](o.cpu)
	o.enqueue(&byteTxTask{
		buf: buf,
		onDone: func(written int64, err error) {
			if err != nil {
				_ = f.SetFailure(err)
			} else {
				_ = f.SetValue(written)
			}
		},
	})
	return f
}

// TransferFrom enqueues a zero-copy file-to-socket transfer of length
// bytes starting at offset. The returned Future resolves with the total
// bytes actually transferred.
func (o *OutputStream) TransferFrom(file *os.File, offset, length int64) *core.Future[int64] {
	f := core.NewFuture[int64](o.cpu)
	o.enqueue(&fileTxTask{
		file:      file,
		offset:    offset,
		remaining: length,
		onDone: func(transferred int64, err error) {
			if err != nil {
				_ = f.SetFailure(err)
			} else {
				_ = f.SetValue(transferred)
			}
		},
	})
	return f
}

// Close fails every queued task (and the currently-active one, if any)
// with err and stops accepting new writes.
func (o *OutputStream) Close(err error) {
	if o.closed {
		return
	}
	o.closed = true
	for o.q.Length() > 0 {
		t := o.q.Remove().(txTask)
		t.finish(err)
	}
}
