package vfscache

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/reflexfs/reflexfs/wire"
)

// errEMFILE is the sentinel the original implementation used for both an
// already-open path and a writable op against a read-only handle (spec.md
// §7's implementation-chosen sentinel).
const errEMFILE = syscall.EMFILE

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// toSyscallErrno unwraps a host call's *os.PathError to the underlying
// errno, falling back to EIO when the error carries no errno at all.
func toSyscallErrno(err error) syscall.Errno {
	var perr *os.PathError
	if errors.As(err, &perr) {
		if errno, ok := perr.Err.(syscall.Errno); ok {
			return errno
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}

// unixTime converts a wire Timespec to a time.Time.
func unixTime(ts wire.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}
