// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"os"

	"github.com/momentics/hioload-core/buffer"
	"github.com/momentics/hioload-core/core"
)

const maxSendfileChunk = 1 << 20

// txTask is one unit of queued network work with an attached completion
// path. compute attempts to make progress against fd without blocking;
// returning done=true pops it from the queue (on success or fatal I/O
// failure alike — compute reports which via err). finish runs exactly
// once, with the error the task ultimately completed (or was cancelled)
// with.
type txTask interface {
	compute(fd uintptr) (done bool, err error)
	finish(err error)
}

type fdWriter struct{ fd uintptr }

func (w fdWriter) Write(p []byte) (int, error) { return writeNonBlocking(w.fd, p) }

// byteTxTask drains a Buffer to the socket. written accumulates actual
// bytes transferred across however many partial-write retries compute
// needs — the source this is modeled on reports the buffer's
// readableBytes() at completion instead, which is always zero once the
// buffer has been fully drained; reporting the running total here is the
// fix.
type byteTxTask struct {
	buf     *buffer.Buffer
	written int64
	onDone  func(written int64, err error) // nil for fire-and-forget tasks
}

func (t *byteTxTask) compute(fd uintptr) (bool, error) {
	for t.buf.Len() > 0 {
		n, err := t.buf.DrainTo(fdWriter{fd})
		t.written += int64(n)
		if err != nil {
			if err == core.ErrWouldBlock {
				return false, nil
			}
			return true, err
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

func (t *byteTxTask) finish(err error) {
	t.buf.Release()
	if t.onDone != nil {
		t.onDone(t.written, err)
	}
}

// fileTxTask transfers a byte range of an *os.File to the socket with
// zero-copy sendfile where the platform has one. transferred accumulates
// across retries the same way byteTxTask.written does.
type fileTxTask struct {
	file        *os.File
	offset      int64
	remaining   int64
	transferred int64
	onDone      func(transferred int64, err error)
}

func (t *fileTxTask) compute(fd uintptr) (bool, error) {
	for t.remaining > 0 {
		n, err := sendfile(fd, t.file, t.offset, int(min(t.remaining, int64(maxSendfileChunk))))
		t.offset += int64(n)
		t.remaining -= int64(n)
		t.transferred += int64(n)
		if err != nil {
			if err == core.ErrWouldBlock {
				return false, nil
			}
			return true, err
		}
		if n == 0 {
			// No bytes and no error: the offset is at the file's current
			// end, so the transfer completes with what was sent.
			return true, nil
		}
	}
	return true, nil
}

func (t *fileTxTask) finish(err error) {
	if t.onDone != nil {
		t.onDone(t.transferred, err)
	}
}
