// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"fmt"
	"net"
	"syscall"
)

// rawConn pairs a net.Conn with the raw file descriptor backing it, so the
// transmit/receive paths can issue non-blocking reads/writes directly and,
// for file transfers, hand the descriptor to sendfile(2).
type rawConn struct {
	net.Conn
	fd uintptr
}

func wrapConn(c net.Conn) (*rawConn, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("netio: connection does not expose a raw fd")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("netio: SyscallConn: %w", err)
	}
	var fd uintptr
	if err := raw.Control(func(f uintptr) { fd = f }); err != nil {
		return nil, fmt.Errorf("netio: raw.Control: %w", err)
	}
	return &rawConn{Conn: c, fd: fd}, nil
}

// FD returns the underlying raw file descriptor/socket handle.
func (r *rawConn) FD() uintptr { return r.fd }
