package serverfs

import (
	"github.com/reflexfs/reflexfs/arbitrator"
	"github.com/reflexfs/reflexfs/internal/rfserrors"
	"github.com/reflexfs/reflexfs/rpcproto"
	"github.com/reflexfs/reflexfs/wire"
)

// Argument conventions for every procedure registered below: a leading path
// argument, zero or more operation-specific arguments, and a trailing status
// slot (spec.md §4.3). read and write additionally store the transferred
// byte count in the status slot on success, matching the original server's
// convention of returning bytesRead/bytesWritten rather than a bare 0/-errno.

// Register binds every RPC procedure spec.md §6 lists, plus the lock/unlock
// pair backing the access arbitrator, onto registry. locks is shared with
// whatever arbitrator.Table guards the download/upload transfer window; it
// is only ever driven remotely through these two procedures, mirroring
// lock_server.cc's thin RPC wrapper around LockUtil.
func Register(registry *rpcproto.Registry, ops *Ops, locks *arbitrator.Table) error {
	procs := map[string]rpcproto.Handler{
		"getattr":  handleGetattr(ops),
		"mknod":    handleMknod(ops),
		"open":     handleOpen(ops),
		"release":  handleRelease(ops),
		"read":     handleRead(ops),
		"write":    handleWrite(ops),
		"truncate": handleTruncate(ops),
		"fsync":    handleFsync(ops),
		"utimens":  handleUtimens(ops),
		"lock":     handleLock(locks),
		"unlock":   handleUnlock(locks),
	}
	for name, h := range procs {
		if err := registry.Register(name, h); err != nil {
			return &rfserrors.RegistrationFailure{Proc: name, Err: err}
		}
	}
	return nil
}

func handleGetattr(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		statBuf := av.Args[1]
		st, status := ops.Getattr(path)
		if status == 0 {
			copy(statBuf.Data, st.Marshal())
		}
		av.SetStatus(status)
		return nil
	}
}

func handleMknod(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		mode := uint32(av.Args[1].Int32())
		av.SetStatus(ops.Mknod(path, mode))
		return nil
	}
}

func handleOpen(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		fi := wire.UnmarshalFileInfo(av.Args[1].Data)
		outFi, status := ops.Open(path, fi)
		copy(av.Args[1].Data, outFi.Marshal())
		av.SetStatus(status)
		return nil
	}
}

func handleRelease(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		fi := wire.UnmarshalFileInfo(av.Args[1].Data)
		av.SetStatus(ops.Release(path, fi))
		return nil
	}
}

func handleRead(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		fi := wire.UnmarshalFileInfo(av.Args[1].Data)
		buf := av.Args[2].Data
		offset := av.Args[3].Int64()
		n, status := ops.Read(fi, buf, offset)
		if status >= 0 {
			av.SetStatus(int32(n))
		} else {
			av.SetStatus(status)
		}
		return nil
	}
}

func handleWrite(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		fi := wire.UnmarshalFileInfo(av.Args[1].Data)
		buf := av.Args[2].Data
		offset := av.Args[3].Int64()
		n, status := ops.Write(fi, buf, offset)
		if status >= 0 {
			av.SetStatus(int32(n))
		} else {
			av.SetStatus(status)
		}
		return nil
	}
}

func handleTruncate(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		size := av.Args[1].Int64()
		av.SetStatus(ops.Truncate(path, size))
		return nil
	}
}

func handleFsync(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		fi := wire.UnmarshalFileInfo(av.Args[1].Data)
		av.SetStatus(ops.Fsync(fi))
		return nil
	}
}

func handleUtimens(ops *Ops) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		atime := wire.UnmarshalTimespec(av.Args[1].Data)
		mtime := wire.UnmarshalTimespec(av.Args[2].Data)
		av.SetStatus(ops.Utimens(path, atime, mtime))
		return nil
	}
}

func handleLock(locks *arbitrator.Table) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		mode := arbitrator.Mode(av.Args[1].Int32())
		locks.Lock(path, mode)
		av.SetStatus(0)
		return nil
	}
}

func handleUnlock(locks *arbitrator.Table) rpcproto.Handler {
	return func(av *rpcproto.ArgVector) error {
		path := av.Args[0].Path()
		mode := arbitrator.Mode(av.Args[1].Int32())
		status := int32(0)
		if err := locks.Unlock(path, mode); err != nil {
			status = -1
		}
		av.SetStatus(status)
		return nil
	}
}
