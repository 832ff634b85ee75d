package arbitrator

import (
	"sync"
)

// WriteOwners is the WriteOwnerSet: the set of logical paths currently open
// for writing by any client in the fleet. A path is in the set iff some
// client holds a server-side open handle with write access on it,
// enforcing single-writer-fleetwide semantics (spec.md §3, §4.2).
type WriteOwners struct {
	mu   sync.Mutex
	open map[string]struct{}
}

// NewWriteOwners returns an empty write-owner set.
func NewWriteOwners() *WriteOwners {
	return &WriteOwners{open: make(map[string]struct{})}
}

// TryAcquire attempts to mark path as open for writing. It reports false if
// the path is already held by another writer, the Go equivalent of the
// open-mode gate refusing with -EACCES (spec.md §4.2).
func (w *WriteOwners) TryAcquire(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, held := w.open[path]; held {
		return false
	}
	w.open[path] = struct{}{}
	return true
}

// Release removes path from the write-owner set, called on release of a
// write-mode server handle.
func (w *WriteOwners) Release(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.open, path)
}

// Holds reports whether path is currently held open for writing, used by
// tests asserting invariant 2 from spec.md §8.
func (w *WriteOwners) Holds(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, held := w.open[path]
	return held
}
