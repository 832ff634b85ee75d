// Package arbitrator implements the server-side access arbitrator: the
// per-path reader/writer lock table (spec.md §4.2, §3 PathLockTable) and the
// open-mode gate backed by the write-owner set (spec.md §4.2 WriteOwnerSet).
package arbitrator

import (
	"sync"

	"github.com/reflexfs/reflexfs/internal/rfserrors"
)

// Mode selects which side of a path's reader/writer lock an operation
// wants: Read for concurrent downloads, Write for exclusive uploads.
type Mode int

const (
	Read Mode = iota
	Write
)

// pathLock is one lazily-created entry in the Table. refs counts active
// holders so the last release can delete the entry, per spec.md §9's
// "destroy on last release" choice (see SPEC_FULL.md §10).
type pathLock struct {
	mu   sync.RWMutex
	refs int
}

// Table is the PathLockTable: a mapping from logical path to a
// reader/writer lock, lazily materialized on first acquire. Locks protect
// the physical transfer window (an in-flight download or upload), not the
// logical open session -- that is WriteOwners' job.
type Table struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

// NewTable returns an empty lock table.
func NewTable() *Table {
	return &Table{locks: make(map[string]*pathLock)}
}

// Lock acquires path's reader/writer lock in the given mode, blocking the
// caller until granted. The table mutex is never held while blocked on the
// per-path lock: the entry is found-or-created and ref-counted under the
// table mutex, which is released before the (possibly blocking) per-path
// acquire, matching the deadlock-avoidance ordering in spec.md §5/§9.
func (t *Table) Lock(path string, mode Mode) {
	t.mu.Lock()
	pl, ok := t.locks[path]
	if !ok {
		pl = &pathLock{}
		t.locks[path] = pl
	}
	pl.refs++
	t.mu.Unlock()

	if mode == Write {
		pl.mu.Lock()
	} else {
		pl.mu.RLock()
	}
}

// Unlock releases path's reader/writer lock acquired with the matching
// mode. If no readers or writers remain afterward, the lock entry is
// destroyed -- safe here because the table mutex is held across both the
// release and the refcount check/delete.
func (t *Table) Unlock(path string, mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pl, ok := t.locks[path]
	if !ok {
		return &rfserrors.LockFailure{Err: errNotLocked(path)}
	}

	if mode == Write {
		pl.mu.Unlock()
	} else {
		pl.mu.RUnlock()
	}
	pl.refs--
	if pl.refs == 0 {
		delete(t.locks, path)
	}
	return nil
}

// Size reports the number of live lock entries, for tests asserting that
// entries are reclaimed once unreferenced.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

type lockError string

func (e lockError) Error() string { return string(e) }

func errNotLocked(path string) error {
	return lockError("arbitrator: no lock held for " + path)
}
