//go:build windows

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"syscall"

	"github.com/momentics/hioload-core/core"
)

func readNonBlocking(fd uintptr, buf []byte) (int, error) {
	n, err := syscall.Read(syscall.Handle(fd), buf)
	if err != nil {
		if err == syscall.EWOULDBLOCK {
			return 0, core.ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, core.ErrEndOfStream
	}
	return n, nil
}

func writeNonBlocking(fd uintptr, buf []byte) (int, error) {
	n, err := syscall.Write(syscall.Handle(fd), buf)
	if err != nil {
		if err == syscall.EWOULDBLOCK {
			return 0, core.ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}
