// Package fusefs binds vfscache.Manager onto the host filesystem driver
// through bazil.org/fuse, the teacher's own FUSE library (used by
// rclone/cmd/mount). Non-goals exclude directory enumeration beyond single-
// entry stat (spec.md §1), so this binding exposes one flat directory: every
// path the mount surfaces lives directly under the mountpoint's root, the
// Go equivalent of the original's path-based fuse_operations table where
// every callback already receives a full "/name" path with no directory
// tree of its own to walk.
package fusefs

import (
	"os"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	bazilfs "bazil.org/fuse/fs"
	"golang.org/x/net/context"

	"github.com/reflexfs/reflexfs/internal/rfserrors"
	"github.com/reflexfs/reflexfs/internal/rlog"
	"github.com/reflexfs/reflexfs/vfscache"
	"github.com/reflexfs/reflexfs/wire"
)

// attrValid bounds how long the kernel may cache attributes between calls;
// kept short since the cache manager's own freshness window, not the
// kernel's attribute cache, is the source of truth.
const attrValid = time.Second

// FS is the root of the mounted file system, implementing bazil.org/fuse's
// fs.FS by forwarding every operation into a vfscache.Manager.
type FS struct {
	manager *vfscache.Manager

	mu    sync.Mutex
	nodes map[string]*node
}

// New constructs a mountable FS backed by manager.
func New(manager *vfscache.Manager) *FS {
	return &FS{manager: manager, nodes: make(map[string]*node)}
}

// Root returns the filesystem's single root directory node.
func (f *FS) Root() (bazilfs.Node, error) {
	return &root{fs: f}, nil
}

// nodeFor returns the (possibly newly created) node tracking name, so the
// same *node instance is reused across Lookup calls for the same path.
func (f *FS) nodeFor(name string) *node {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[name]
	if !ok {
		n = &node{fs: f, path: "/" + name}
		f.nodes[name] = n
	}
	return n
}

// root implements the mount's single flat directory.
type root struct {
	fs *FS
}

var (
	_ bazilfs.Node               = (*root)(nil)
	_ bazilfs.NodeStringLookuper = (*root)(nil)
	_ bazilfs.NodeCreater        = (*root)(nil)
	_ bazilfs.NodeMknodder       = (*root)(nil)
)

func (r *root) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0o755
	a.Valid = attrValid
	return nil
}

// Lookup resolves a single top-level name, the only directory depth this
// mount supports.
func (r *root) Lookup(ctx context.Context, name string) (bazilfs.Node, error) {
	n := r.fs.nodeFor(name)
	if _, err := r.fs.manager.Getattr(n.path); err != nil {
		return nil, toFuseError(err)
	}
	return n, nil
}

// Mknod implements plain mknod(2) calls the kernel issues for non-regular
// files; this system only ever creates regular files (spec.md Non-goals
// exclude special files), so it is routed the same as Create without an
// open.
func (r *root) Mknod(ctx context.Context, req *fuse.MknodRequest) (bazilfs.Node, error) {
	n := r.fs.nodeFor(req.Name)
	if err := r.fs.manager.Mknod(n.path, uint32(req.Mode)); err != nil {
		return nil, toFuseError(err)
	}
	return n, nil
}

// Create implements open(2) with O_CREAT: mknod followed immediately by
// open, mirroring the original's mknod-then-open call pair from the FUSE
// kernel module's own handling of O_CREAT.
func (r *root) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (bazilfs.Node, bazilfs.Handle, error) {
	n := r.fs.nodeFor(req.Name)
	if err := r.fs.manager.Mknod(n.path, uint32(req.Mode)); err != nil {
		return nil, nil, toFuseError(err)
	}
	flags := flagsFromFuse(req.Flags)
	if err := r.fs.manager.Open(n.path, flags); err != nil {
		return nil, nil, toFuseError(err)
	}
	return n, &handle{node: n}, nil
}

// node is a regular file somewhere directly under the mount root.
type node struct {
	fs   *FS
	path string
}

var (
	_ bazilfs.Node          = (*node)(nil)
	_ bazilfs.NodeOpener    = (*node)(nil)
	_ bazilfs.NodeSetattrer = (*node)(nil)
	_ bazilfs.NodeFsyncer   = (*node)(nil)
)

func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	st, err := n.fs.manager.Getattr(n.path)
	if err != nil {
		return toFuseError(err)
	}
	a.Mode = os.FileMode(st.Mode) & os.ModePerm
	a.Size = uint64(st.Size)
	a.Mtime = unixTime(st.Mtime)
	a.Atime = unixTime(st.Atime)
	a.Valid = attrValid
	return nil
}

func (n *node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (bazilfs.Handle, error) {
	flags := flagsFromFuse(req.Flags)
	if err := n.fs.manager.Open(n.path, flags); err != nil {
		return nil, toFuseError(err)
	}
	return &handle{node: n}, nil
}

func (n *node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid&fuse.SetattrSize != 0 {
		if err := n.fs.manager.Truncate(n.path, int64(req.Size)); err != nil {
			return toFuseError(err)
		}
	}
	if req.Valid&(fuse.SetattrMtime|fuse.SetattrAtime) != 0 {
		mtime := timeTs(req.Mtime)
		atime := timeTs(req.Atime)
		if err := n.fs.manager.Utimens(n.path, atime, mtime); err != nil {
			return toFuseError(err)
		}
	}
	return n.Attr(ctx, &resp.Attr)
}

func (n *node) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	if err := n.fs.manager.Fsync(n.path); err != nil {
		return toFuseError(err)
	}
	return nil
}

// handle is the open file instance returned from Open/Create.
type handle struct {
	node *node
}

var (
	_ bazilfs.HandleReader   = (*handle)(nil)
	_ bazilfs.HandleWriter   = (*handle)(nil)
	_ bazilfs.HandleReleaser = (*handle)(nil)
)

func (h *handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)
	n, err := h.node.fs.manager.Read(h.node.path, buf, req.Offset)
	if err != nil {
		return toFuseError(err)
	}
	resp.Data = buf[:n]
	return nil
}

func (h *handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.node.fs.manager.Write(h.node.path, req.Data, req.Offset)
	if err != nil {
		return toFuseError(err)
	}
	resp.Size = n
	return nil
}

func (h *handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	if err := h.node.fs.manager.Release(h.node.path); err != nil {
		return toFuseError(err)
	}
	return nil
}

func flagsFromFuse(flags fuse.OpenFlags) int32 {
	if flags&(fuse.OpenWriteOnly|fuse.OpenReadWrite) != 0 {
		return wire.FlagReadWrite
	}
	return 0
}

func unixTime(ts wire.Timespec) time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

func timeTs(t time.Time) wire.Timespec {
	return wire.Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// toFuseError maps this system's error taxonomy onto the fuse.Errno values
// the kernel expects, via the shared rfserrors.ToErrno boundary.
func toFuseError(err error) error {
	if err == nil {
		return nil
	}
	rlog.Debugf("", "fuse op failed: %v", err)
	return fuse.Errno(syscall.Errno(-rfserrors.ToErrno(err)))
}
