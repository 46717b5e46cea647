//go:build linux || darwin

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"syscall"

	"github.com/momentics/hioload-core/core"
)

// readNonBlocking issues one non-blocking read on fd. The underlying fd is
// already O_NONBLOCK (net.Listen/net.Dial always set it), so this never
// parks the calling goroutine the way net.Conn.Read would via the Go
// runtime's own netpoller — readiness is instead driven entirely by the
// CPU's own reactor.Selector.
func readNonBlocking(fd uintptr, buf []byte) (int, error) {
	n, err := syscall.Read(int(fd), buf)
	if err != nil {
		if err == syscall.EAGAIN {
			return 0, core.ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, core.ErrEndOfStream
	}
	return n, nil
}

// writeNonBlocking issues one non-blocking write on fd.
func writeNonBlocking(fd uintptr, buf []byte) (int, error) {
	n, err := syscall.Write(int(fd), buf)
	if err != nil {
		if err == syscall.EAGAIN {
			return 0, core.ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}
