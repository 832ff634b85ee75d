package arbitrator

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLazyCreateAndDestroy(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, 0, tbl.Size())

	tbl.Lock("/a", Read)
	assert.Equal(t, 1, tbl.Size())

	require.NoError(t, tbl.Unlock("/a", Read))
	assert.Equal(t, 0, tbl.Size(), "lock entry should be reclaimed once unreferenced")
}

func TestTableConcurrentReaders(t *testing.T) {
	tbl := NewTable()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl.Lock("/shared", Read)
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			require.NoError(t, tbl.Unlock("/shared", Read))
		}()
	}
	wg.Wait()
	assert.Greater(t, int(atomic.LoadInt32(&maxActive)), 1, "readers should overlap")
}

// TestTableWritesAreExclusive exercises invariant 3: no two write-lock
// acquires on the same path are ever concurrent, and a write-lock acquire
// is never concurrent with a read-lock acquire.
func TestTableWritesAreExclusive(t *testing.T) {
	tbl := NewTable()
	var holders int32
	var writers int32
	var sawOverlap bool
	var mu sync.Mutex
	var wg sync.WaitGroup

	acquire := func(mode Mode) {
		defer wg.Done()
		tbl.Lock("/excl", mode)
		n := atomic.AddInt32(&holders, 1)
		if mode == Write {
			atomic.AddInt32(&writers, 1)
		}
		if n > 1 && (mode == Write || atomic.LoadInt32(&writers) > 0) {
			mu.Lock()
			sawOverlap = true
			mu.Unlock()
		}
		time.Sleep(2 * time.Millisecond)
		if mode == Write {
			atomic.AddInt32(&writers, -1)
		}
		atomic.AddInt32(&holders, -1)
		require.NoError(t, tbl.Unlock("/excl", mode))
	}

	for i := 0; i < 6; i++ {
		wg.Add(1)
		mode := Read
		if i%2 == 0 {
			mode = Write
		}
		go acquire(mode)
	}
	wg.Wait()
	assert.False(t, sawOverlap)
}

func TestUnlockUnknownPathIsLockFailure(t *testing.T) {
	tbl := NewTable()
	err := tbl.Unlock("/never-locked", Read)
	require.Error(t, err)
}
