package arbitrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestWriteOwnersMatchesOpenWriters exercises invariant 2 from spec.md §8
// and scenario S2 (write-lockout): the set contains a path iff some client
// holds it open for writing.
func TestWriteOwnersMatchesOpenWriters(t *testing.T) {
	owners := NewWriteOwners()
	assert.False(t, owners.Holds("/b"))

	assert.True(t, owners.TryAcquire("/b"))
	assert.True(t, owners.Holds("/b"))

	assert.False(t, owners.TryAcquire("/b"), "a second writer must be refused")

	owners.Release("/b")
	assert.False(t, owners.Holds("/b"))

	assert.True(t, owners.TryAcquire("/b"), "after release, a new writer may acquire")
}

func TestWriteOwnersIndependentPaths(t *testing.T) {
	owners := NewWriteOwners()
	assert.True(t, owners.TryAcquire("/a"))
	assert.True(t, owners.TryAcquire("/b"))
	assert.True(t, owners.Holds("/a"))
	assert.True(t, owners.Holds("/b"))
}
