// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"github.com/momentics/hioload-core/buffer"
	"github.com/momentics/hioload-core/core"
)

// readChunkSize bounds a single non-blocking read syscall issued per pass
// of triggerRx.
const readChunkSize = 64 * 1024

type fdReader struct{ fd uintptr }

func (r fdReader) Read(p []byte) (int, error) { return readNonBlocking(r.fd, p) }

// InputStream accumulates bytes read off one socket into a single growable
// Buffer and exposes exactly one in-flight read at a time: either a fixed
// byte count (Read) or a framing consumer (ReadConsume). A second call
// while one is already pending fails fast with an invariant error rather
// than silently queuing — this stream has one reader, not a queue of them.
type InputStream struct {
	cpu *core.CPU
	fd  uintptr
	buf *buffer.Buffer

	closed bool

	pendingAttempt func() bool
	pendingFail    func(error)

	onFatal func(error)
}

func newInputStream(cpu *core.CPU, fd uintptr, onFatal func(error)) *InputStream {
	return &InputStream{
		cpu:     cpu,
		fd:      fd,
		buf:     buffer.NewBuffer(nil),
		onFatal: onFatal,
	}
}

func errAlreadyPending() error {
	return core.NewInvariantError(
		"input_stream_busy",
		"a read is already pending on this stream",
		nil,
	)
}

// Read resolves once exactly n bytes have accumulated, delivering them as a
// freshly allocated Buffer positioned at its own reader cursor.
func (in *InputStream) Read(n int) *core.Future[*buffer.Buffer] {
	f := core.NewFuture[*buffer.Buffer](in.cpu)
	if in.pendingAttempt != nil {
		_ = f.SetFailure(errAlreadyPending())
		return f
	}
	if in.closed {
		_ = f.SetFailure(core.ErrClosed)
		return f
	}
	in.pendingAttempt = func() bool {
		if in.buf.Len() < n {
			return false
		}
		raw, err := in.buf.ReadBytesN(n)
		if err != nil {
			_ = f.SetFailure(err)
			return true
		}
		_ = f.SetValue(buffer.NewBuffer(raw))
		return true
	}
	in.pendingFail = func(err error) { _ = f.SetFailure(err) }
	in.tryPending()
	return f
}

// ReadConsume drives step against the accumulated buffer each time more
// bytes arrive. The reader cursor is marked before each call to step and,
// on CONTINUE, rolled back to that mark so a partially-examined frame is re-offered whole once more
// data lands; STOP or STOP_WITH resolves the returned Future with the
// status's payload cast to T (the zero value of T if step returned STOP
// with no payload, or a payload of the wrong type).
func ReadConsume[T any](in *InputStream, step func(buf *buffer.Buffer) (core.Status, error)) *core.Future[T] {
	f := core.NewFuture[T](in.cpu)
	if in.pendingAttempt != nil {
		_ = f.SetFailure(errAlreadyPending())
		return f
	}
	if in.closed {
		_ = f.SetFailure(core.ErrClosed)
		return f
	}
	in.pendingAttempt = func() bool {
		in.buf.MarkReaderIndex()
		status, err := step(in.buf)
		if err != nil {
			_ = f.SetFailure(err)
			return true
		}
		if status.Kind() == core.Continue {
			in.buf.ResetReaderIndex()
			return false
		}
		v, _ := status.Value().(T)
		_ = f.SetValue(v)
		return true
	}
	in.pendingFail = func(err error) { _ = f.SetFailure(err) }
	in.tryPending()
	return f
}

// ReadShort resolves once 2 bytes are available, decoded big-endian.
func (in *InputStream) ReadShort() *core.Future[uint16] {
	return ReadConsume[uint16](in, func(buf *buffer.Buffer) (core.Status, error) {
		if buf.Len() < 2 {
			return core.ContinueStatus(), nil
		}
		v, err := buf.ReadShort()
		if err != nil {
			return core.Status{}, err
		}
		return core.StopWithStatus(v), nil
	})
}

// ReadInt resolves once 4 bytes are available, decoded big-endian.
func (in *InputStream) ReadInt() *core.Future[uint32] {
	return ReadConsume[uint32](in, func(buf *buffer.Buffer) (core.Status, error) {
		if buf.Len() < 4 {
			return core.ContinueStatus(), nil
		}
		v, err := buf.ReadInt()
		if err != nil {
			return core.Status{}, err
		}
		return core.StopWithStatus(v), nil
	})
}

// ReadLong resolves once 8 bytes are available, decoded big-endian.
func (in *InputStream) ReadLong() *core.Future[uint64] {
	return ReadConsume[uint64](in, func(buf *buffer.Buffer) (core.Status, error) {
		if buf.Len() < 8 {
			return core.ContinueStatus(), nil
		}
		v, err := buf.ReadLong()
		if err != nil {
			return core.Status{}, err
		}
		return core.StopWithStatus(v), nil
	})
}

// ReadFloat resolves once 4 bytes are available, decoded as an IEEE-754 float32.
func (in *InputStream) ReadFloat() *core.Future[float32] {
	return ReadConsume[float32](in, func(buf *buffer.Buffer) (core.Status, error) {
		if buf.Len() < 4 {
			return core.ContinueStatus(), nil
		}
		v, err := buf.ReadFloat()
		if err != nil {
			return core.Status{}, err
		}
		return core.StopWithStatus(v), nil
	})
}

// ReadDouble resolves once 8 bytes are available, decoded as an IEEE-754 float64.
func (in *InputStream) ReadDouble() *core.Future[float64] {
	return ReadConsume[float64](in, func(buf *buffer.Buffer) (core.Status, error) {
		if buf.Len() < 8 {
			return core.ContinueStatus(), nil
		}
		v, err := buf.ReadDouble()
		if err != nil {
			return core.Status{}, err
		}
		return core.StopWithStatus(v), nil
	})
}

// tryPending attempts the pending reader against whatever is currently
// buffered, clearing it and compacting the buffer if it resolves.
func (in *InputStream) tryPending() {
	attempt, fail := in.pendingAttempt, in.pendingFail
	if attempt == nil {
		return
	}
	// Clear the slot before attempting, so a continuation that runs inline
	// on resolution can install the next reader.
	in.pendingAttempt, in.pendingFail = nil, nil
	if !attempt() {
		in.pendingAttempt, in.pendingFail = attempt, fail
		return
	}
	in.buf.DiscardReadBytes()
}

// triggerTx — see outputstream.go; triggerRx is this stream's counterpart,
// invoked by the owning Channel when the selector reports the socket
// readable. It drains as many non-blocking reads as are immediately
// available, feeding the pending reader after each, and stops at the first
// would-block or fatal condition.
func (in *InputStream) triggerRx() {
	for {
		n, err := in.buf.ReadBytes(fdReader{in.fd}, readChunkSize)
		if err != nil {
			if err == core.ErrWouldBlock {
				return
			}
			in.failFatal(err)
			return
		}
		in.tryPending()
		if n == 0 {
			return
		}
	}
}

func (in *InputStream) failFatal(err error) {
	if in.pendingFail != nil {
		in.pendingFail(err)
		in.pendingAttempt = nil
		in.pendingFail = nil
	}
	if in.onFatal != nil {
		in.onFatal(err)
	}
}

// Close fails any pending reader with err and stops accepting new reads.
func (in *InputStream) Close(err error) {
	if in.closed {
		return
	}
	in.closed = true
	if in.pendingFail != nil {
		in.pendingFail(err)
		in.pendingAttempt = nil
		in.pendingFail = nil
	}
}
