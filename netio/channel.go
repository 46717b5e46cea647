// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"net"

	"github.com/momentics/hioload-core/core"
	"github.com/momentics/hioload-core/reactor"
)

// Channel pairs one InputStream and one OutputStream over a single socket,
// registered with exactly one CPU's selector for the socket's entire
// lifetime. Every method on Channel, InputStream, and OutputStream assumes
// the caller is already running on that owning CPU — as a task, a Future
// continuation, or a selector callback always are — the same no-locks
// discipline the CPU's own local queue and timer heap rely on.
type Channel struct {
	cpu  *core.CPU
	sel  reactor.Selector
	conn *rawConn

	in  *InputStream
	out *OutputStream

	wantRead  bool
	wantWrite bool
	closed    bool
}

// NewChannel wraps conn as a Channel bound to cpu. Construction — including
// the initial selector registration — runs on cpu's own goroutine via
// core.Schedule, so the returned Future resolves with a Channel that is
// already safe to use from any continuation chained on it.
func NewChannel(cpu *core.CPU, conn net.Conn) *core.Future[*Channel] {
	return core.Schedule[*Channel](cpu, func() (*Channel, error) {
		rc, err := wrapConn(conn)
		if err != nil {
			return nil, err
		}
		sel := cpu.Selector()
		if sel == nil {
			return nil, core.ErrNoSelector
		}
		ch := &Channel{cpu: cpu, sel: sel, conn: rc, wantRead: true}
		ch.in = newInputStream(cpu, rc.FD(), ch.onFatal)
		ch.out = newOutputStream(cpu, rc.FD(), ch.setWriteInterest, ch.onFatal)
		if err := sel.Register(rc.FD(), reactor.Read, cpu.WrapCallback(ch.onReady)); err != nil {
			return nil, err
		}
		return ch, nil
	})
}

// CPU returns the CPU this Channel is bound to.
func (ch *Channel) CPU() *core.CPU { return ch.cpu }

// In returns this channel's InputStream.
func (ch *Channel) In() *InputStream { return ch.in }

// Out returns this channel's OutputStream.
func (ch *Channel) Out() *OutputStream { return ch.out }

func (ch *Channel) onReady(fd uintptr, ready reactor.Interest) {
	if ready&reactor.Read != 0 {
		ch.in.triggerRx()
	}
	if ready&reactor.Write != 0 {
		ch.out.triggerTx()
	}
}

// setWriteInterest is OutputStream's callback for the empty<->non-empty
// transmit-queue transition; it only issues SetInterest on an actual
// change, per the selector's hysteresis contract.
func (ch *Channel) setWriteInterest(want bool) {
	if ch.closed || ch.wantWrite == want {
		return
	}
	ch.wantWrite = want
	ch.applyInterest()
}

func (ch *Channel) applyInterest() {
	var interest reactor.Interest
	if ch.wantRead {
		interest |= reactor.Read
	}
	if ch.wantWrite {
		interest |= reactor.Write
	}
	if err := ch.sel.SetInterest(ch.conn.FD(), interest); err != nil {
		ch.onFatal(err)
	}
}

func (ch *Channel) onFatal(err error) { ch.Close(err) }

// Close unregisters the socket, closes it, and fails the pending reader and
// every queued transmit task with err (core.ErrClosed if err is nil).
// Idempotent.
func (ch *Channel) Close(err error) {
	if ch.closed {
		return
	}
	ch.closed = true
	if err == nil {
		err = core.ErrClosed
	}
	_ = ch.sel.Unregister(ch.conn.FD())
	_ = ch.conn.Conn.Close()
	ch.in.Close(err)
	ch.out.Close(err)
}
