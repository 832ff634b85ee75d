package vfscache

import (
	"os"

	"github.com/reflexfs/reflexfs/arbitrator"
	"github.com/reflexfs/reflexfs/chunk"
	"github.com/reflexfs/reflexfs/internal/rfserrors"
	"github.com/reflexfs/reflexfs/internal/rlog"
	"github.com/reflexfs/reflexfs/wire"
)

// download implements spec.md §4.5's download sequence in the order it
// lists: acquire the server read-lock first, getattr under that lock,
// truncate and refill the local copy, stamp its times from the server's,
// and only then release the lock -- so a concurrent uploader can never
// change the file out from under the metadata this download acts on.
func (m *Manager) download(path string, h *fileHandle) error {
	rlog.Debugf(path, "download: begin")

	if status, err := m.remote.Lock(path, arbitrator.Read); err != nil {
		return err
	} else if status < 0 {
		return &rfserrors.LockFailure{Err: errnoFromStatus(status)}
	}
	locked := true
	unlock := func() {
		if locked {
			m.remote.Unlock(path, arbitrator.Read)
			locked = false
		}
	}
	defer unlock()

	st, status, err := m.remote.Getattr(path)
	if err != nil {
		return err
	}
	if status < 0 {
		return &rfserrors.SystemFailure{Errno_: errnoFromStatus(status)}
	}

	if err := h.local.Truncate(0); err != nil {
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	if st.Size > 0 {
		buf := make([]byte, st.Size)
		n, err := chunk.RunLoop(buf, 0, chunk.Ceiling, func(b []byte, off int64) (int, error) {
			return m.remote.Read(h.fileInfo(), b, off)
		})
		if err != nil {
			return err
		}
		if _, err := h.local.WriteAt(buf[:n], 0); err != nil {
			return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
		}
	}

	mtime := unixTime(st.Mtime)
	atime := unixTime(st.Atime)
	if err := os.Chtimes(h.local.Name(), atime, mtime); err != nil {
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	m.markValidated(h)
	unlock()
	rlog.Debugf(path, "download: complete (%d bytes)", st.Size)
	return nil
}

// upload implements spec.md §4.5's upload sequence, grounded on upload_file:
// fsync and read the local copy in full, truncate the server's copy to the
// local size, transfer the bytes under the path's write lock, then push the
// local mtime/atime back
// onto the server so the two copies' times match exactly afterward.
func (m *Manager) upload(path string, h *fileHandle) error {
	rlog.Debugf(path, "upload: begin")

	if err := h.local.Sync(); err != nil {
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	info, err := h.local.Stat()
	if err != nil {
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	buf := make([]byte, info.Size())
	if _, err := h.local.ReadAt(buf, 0); err != nil && len(buf) > 0 {
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	if status, err := m.remote.Truncate(path, info.Size()); err != nil {
		return err
	} else if status < 0 {
		return &rfserrors.SystemFailure{Errno_: errnoFromStatus(status)}
	}

	if status, err := m.remote.Lock(path, arbitrator.Write); err != nil {
		return err
	} else if status < 0 {
		return &rfserrors.LockFailure{Err: errnoFromStatus(status)}
	}

	_, werr := chunk.RunLoop(buf, 0, chunk.Ceiling, func(b []byte, off int64) (int, error) {
		return m.remote.Write(h.fileInfo(), b, off)
	})

	if _, uerr := m.remote.Unlock(path, arbitrator.Write); uerr != nil && werr == nil {
		werr = uerr
	}
	if werr != nil {
		return werr
	}

	mtimeTs := wire.Timespec{Sec: info.ModTime().Unix(), Nsec: int64(info.ModTime().Nanosecond())}
	at := atime(info)
	atimeTs := wire.Timespec{Sec: at.Unix(), Nsec: int64(at.Nanosecond())}

	if status, err := m.remote.Utimens(path, atimeTs, mtimeTs); err != nil {
		return err
	} else if status < 0 {
		return &rfserrors.SystemFailure{Errno_: errnoFromStatus(status)}
	}

	m.markValidated(h)
	rlog.Debugf(path, "upload: complete (%d bytes)", info.Size())
	return nil
}
