//go:build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-core/core"
)

// sendfile transfers up to count bytes from src at offset to dstFD using
// the zero-copy sendfile(2) syscall. EAGAIN is translated into
// core.ErrWouldBlock to fit the same retry loop a buffer-backed
// TransferTask uses; a partial transfer (n < count, no error) is returned
// as is, and zero bytes with no error means offset is at end of file.
func sendfile(dstFD uintptr, src *os.File, offset int64, count int) (written int, err error) {
	off := offset
	n, err := unix.Sendfile(int(dstFD), int(src.Fd()), &off, count)
	if err != nil {
		if err == unix.EAGAIN {
			return n, core.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}
