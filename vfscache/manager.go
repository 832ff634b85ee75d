package vfscache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/reflexfs/reflexfs/internal/rfserrors"
	"github.com/reflexfs/reflexfs/internal/rlog"
	"github.com/reflexfs/reflexfs/rpcproto"
	"github.com/reflexfs/reflexfs/wire"
)

// Manager is the client-side cache manager: spec.md §4.1's public contract
// (Getattr, Mknod, Open, Release, Read, Write, Truncate, Fsync, Utimens),
// backed by a local cache directory, a CacheIndex of currently-open
// handles, and an RPC stub reaching the persist directory.
type Manager struct {
	cacheDir string
	interval time.Duration
	remote   *remote
	index    *cacheIndex

	// transientAttr memoizes a transient getattr's result for the same
	// window a real open would trust it, so two back-to-back transient
	// getattr calls on an unopened path (a common FUSE stat-then-open
	// sequence) don't each pay a full download round trip. It never
	// substitutes for the freshness rule on an actually-open handle --
	// only Getattr on an unopened path consults it; Truncate and Utimens
	// do not.
	transientAttr *cache.Cache
}

// NewManager constructs a cache manager rooted at cacheDir, validating
// handles against interval and reaching the server through client.
func NewManager(cacheDir string, interval time.Duration, client *rpcproto.Client) *Manager {
	return &Manager{
		cacheDir:      cacheDir,
		interval:      interval,
		remote:        newRemote(client),
		index:         newCacheIndex(),
		transientAttr: cache.New(interval, 2*interval),
	}
}

func (m *Manager) localPath(path string) string {
	return filepath.Join(m.cacheDir, path)
}

// osOpenFlags returns the open(2) flags for a local cache file. The file is
// opened read-write whatever the access mode, because download truncates and
// refills the local copy for read-mode handles too.
func osOpenFlags(flags int32) int {
	return os.O_RDWR | os.O_CREATE
}

// openTransient opens path for a single getattr/truncate/utimens call made
// against a path with no long-lived open handle, the Go shape of the
// original's RAII<struct fuse_file_info> local plus an inline download_file
// call in watdfs_cli_getattr/_truncate/_utimens.
func (m *Manager) openTransient(path string, flags int32) (*fileHandle, error) {
	f, err := os.OpenFile(m.localPath(path), osOpenFlags(flags), 0o644)
	if err != nil {
		return nil, &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}
	h := &fileHandle{local: f, flags: flags}

	fi, status, err := m.remote.Open(path, wire.FileInfo{Flags: flags})
	if err != nil {
		f.Close()
		return nil, err
	}
	if status < 0 {
		f.Close()
		return nil, &rfserrors.SystemFailure{Errno_: errnoFromStatus(status)}
	}
	h.remoteHandle = fi.Handle

	if err := m.download(path, h); err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

// closeTransient releases a handle opened by openTransient, uploading first
// if it was opened for writing.
func (m *Manager) closeTransient(path string, h *fileHandle) error {
	var uploadErr error
	if h.accessMode() == wire.AccessWrite {
		uploadErr = m.upload(path, h)
	}
	status, err := m.remote.Release(path, h.fileInfo())
	h.local.Close()
	if uploadErr != nil {
		return uploadErr
	}
	if err != nil {
		return err
	}
	if status < 0 {
		return &rfserrors.SystemFailure{Errno_: errnoFromStatus(status)}
	}
	return nil
}

// Getattr implements spec.md §4.1's getattr: a held handle is consulted
// directly (a read-mode handle is downloaded first if stale), otherwise a
// transient open-
// download-release cycle fetches the current attributes.
func (m *Manager) Getattr(path string) (wire.Stat, error) {
	if h, isOpen := m.index.get(path); isOpen {
		if h.accessMode() == wire.AccessRead && !m.isFresh(path, h) {
			if err := m.download(path, h); err != nil {
				return wire.Stat{}, err
			}
		}
		info, err := h.local.Stat()
		if err != nil {
			return wire.Stat{}, &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
		}
		return statFromLocal(info), nil
	}

	if cached, ok := m.transientAttr.Get(path); ok {
		rlog.Debugf(path, "getattr: transient cache hit")
		return cached.(wire.Stat), nil
	}

	h, err := m.openTransient(path, 0)
	if err != nil {
		return wire.Stat{}, err
	}
	info, statErr := h.local.Stat()
	if closeErr := m.closeTransient(path, h); statErr == nil {
		statErr = closeErr
	}
	if statErr != nil {
		return wire.Stat{}, statErr
	}
	st := statFromLocal(info)
	m.transientAttr.SetDefault(path, st)
	return st, nil
}

// Mknod implements spec.md §4.1's mknod: create the file on the server
// first, then mirror the (empty) file into the local cache.
func (m *Manager) Mknod(path string, mode uint32) error {
	status, err := m.remote.Mknod(path, mode)
	if err != nil {
		return err
	}
	if status < 0 {
		return &rfserrors.SystemFailure{Errno_: errnoFromStatus(status)}
	}

	f, err := os.OpenFile(m.localPath(path), os.O_CREATE|os.O_EXCL, os.FileMode(mode&0o777))
	if err != nil {
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}
	return f.Close()
}

// Open implements spec.md §4.1's open: refuses a second concurrent open of
// the same logical path (matching invariant 1), registers with the
// server's write-owner gate, and primes the local cache with a download.
func (m *Manager) Open(path string, flags int32) error {
	if _, isOpen := m.index.get(path); isOpen {
		return &rfserrors.ProtocolViolation{Op: "open", Code: errEMFILE}
	}

	h, err := m.openTransient(path, flags)
	if err != nil {
		return err
	}
	m.index.put(path, h)
	return nil
}

// Release implements spec.md §4.1's release: uploads a write-opened file
// back to the server before closing, matching invariant 4.
func (m *Manager) Release(path string) error {
	h, ok := m.index.get(path)
	if !ok {
		return &rfserrors.ProtocolViolation{Op: "release", Code: errEMFILE}
	}
	err := m.closeTransient(path, h)
	m.index.delete(path)
	return err
}

// Read implements spec.md §4.1's read: a read-opened handle is refreshed
// from the server if stale before the local pread.
func (m *Manager) Read(path string, buf []byte, offset int64) (int, error) {
	h, ok := m.index.get(path)
	if !ok {
		return 0, &rfserrors.ProtocolViolation{Op: "read", Code: errEMFILE}
	}

	if h.accessMode() == wire.AccessRead && !m.isFresh(path, h) {
		if err := m.download(path, h); err != nil {
			return 0, err
		}
	}

	n, err := h.local.ReadAt(buf, offset)
	if err != nil && n == 0 {
		if isEOF(err) {
			return 0, nil
		}
		return 0, &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}
	return n, nil
}

// Write implements spec.md §4.1's write: the local pwrite happens first
// (write-back semantics), then the result is pushed to the server if the
// handle's freshness window has lapsed.
func (m *Manager) Write(path string, buf []byte, offset int64) (int, error) {
	h, ok := m.index.get(path)
	if !ok {
		return 0, &rfserrors.ProtocolViolation{Op: "write", Code: errEMFILE}
	}
	if h.accessMode() != wire.AccessWrite {
		return 0, &rfserrors.ProtocolViolation{Op: "write", Code: errEMFILE}
	}

	n, err := h.local.WriteAt(buf, offset)
	if err != nil {
		return n, &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	if !m.isFresh(path, h) {
		if err := m.upload(path, h); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Truncate implements spec.md §4.1's truncate, opening a transient
// read-write handle when the path has no long-lived one.
func (m *Manager) Truncate(path string, size int64) error {
	h, isOpen := m.index.get(path)
	if isOpen && h.accessMode() == wire.AccessRead {
		return &rfserrors.ProtocolViolation{Op: "truncate", Code: errEMFILE}
	}

	transient := !isOpen
	if transient {
		var err error
		h, err = m.openTransient(path, wire.FlagReadWrite)
		if err != nil {
			return err
		}
	}

	if err := h.local.Truncate(size); err != nil {
		if transient {
			m.closeTransient(path, h)
		}
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	if transient || !m.isFresh(path, h) {
		if err := m.upload(path, h); err != nil {
			if transient {
				m.closeTransient(path, h)
			}
			return err
		}
	}

	if transient {
		return m.closeTransient(path, h)
	}
	return nil
}

// Fsync implements spec.md §4.1's fsync: pushes a write-opened handle's
// current contents to the server immediately, ahead of its freshness
// window lapsing.
func (m *Manager) Fsync(path string) error {
	h, ok := m.index.get(path)
	if !ok {
		return &rfserrors.ProtocolViolation{Op: "fsync", Code: errEMFILE}
	}
	if h.accessMode() != wire.AccessWrite {
		return &rfserrors.ProtocolViolation{Op: "fsync", Code: errEMFILE}
	}
	return m.upload(path, h)
}

// Utimens implements spec.md §4.1's utimens, opening a transient read-write
// handle when the path has no long-lived one.
func (m *Manager) Utimens(path string, atime, mtime wire.Timespec) error {
	h, isOpen := m.index.get(path)
	if isOpen && h.accessMode() == wire.AccessRead {
		return &rfserrors.ProtocolViolation{Op: "utimens", Code: errEMFILE}
	}

	transient := !isOpen
	if transient {
		var err error
		h, err = m.openTransient(path, wire.FlagReadWrite)
		if err != nil {
			return err
		}
	}

	if err := os.Chtimes(h.local.Name(), unixTime(atime), unixTime(mtime)); err != nil {
		if transient {
			m.closeTransient(path, h)
		}
		return &rfserrors.SystemFailure{Errno_: toSyscallErrno(err)}
	}

	if transient || !m.isFresh(path, h) {
		if err := m.upload(path, h); err != nil {
			if transient {
				m.closeTransient(path, h)
			}
			return err
		}
	}

	if transient {
		return m.closeTransient(path, h)
	}
	return nil
}

func statFromLocal(info os.FileInfo) wire.Stat {
	mtime := info.ModTime()
	at := atime(info)
	return wire.Stat{
		Size:  info.Size(),
		Mode:  uint32(info.Mode().Perm()),
		Mtime: wire.Timespec{Sec: mtime.Unix(), Nsec: int64(mtime.Nanosecond())},
		Atime: wire.Timespec{Sec: at.Unix(), Nsec: int64(at.Nanosecond())},
	}
}
