package vfscache

import (
	"os"
	"sync"
	"time"

	"github.com/reflexfs/reflexfs/wire"
)

// fileHandle is the Go shape of the original's FileData: the local cache
// descriptor, the remote handle the server minted on open, the access
// flags the path was opened with, and the last time this entry was
// validated against the server (Tc).
type fileHandle struct {
	local        *os.File
	remoteHandle uint64
	flags        int32
	validatedAt  time.Time
}

func (h *fileHandle) accessMode() wire.AccessMode {
	return wire.ProcessAccessMode(h.flags)
}

func (h *fileHandle) fileInfo() wire.FileInfo {
	return wire.FileInfo{Flags: h.flags, Handle: h.remoteHandle}
}

// cacheIndex is the CacheIndex from spec.md §3: one fileHandle per
// currently-open logical path, guarded by its own mutex so the manager
// never has to hold a global lock across a blocking RPC round trip.
type cacheIndex struct {
	mu    sync.Mutex
	paths map[string]*fileHandle
}

func newCacheIndex() *cacheIndex {
	return &cacheIndex{paths: make(map[string]*fileHandle)}
}

func (c *cacheIndex) get(path string) (*fileHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.paths[path]
	return h, ok
}

func (c *cacheIndex) put(path string, h *fileHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[path] = h
}

func (c *cacheIndex) delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.paths, path)
}
