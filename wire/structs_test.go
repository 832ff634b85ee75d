package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatRoundTrip(t *testing.T) {
	s := Stat{
		Size:  3000,
		Mode:  0644,
		Mtime: Timespec{Sec: 1700000000, Nsec: 123},
		Atime: Timespec{Sec: 1700000005, Nsec: 456},
	}
	got := UnmarshalStat(s.Marshal())
	assert.Equal(t, s, got)
}

func TestFileInfoRoundTrip(t *testing.T) {
	fi := FileInfo{Flags: FlagReadWrite, Handle: 0xdeadbeef}
	got := UnmarshalFileInfo(fi.Marshal())
	assert.Equal(t, fi, got)
}

func TestProcessAccessMode(t *testing.T) {
	assert.Equal(t, AccessRead, ProcessAccessMode(0))
	assert.Equal(t, AccessWrite, ProcessAccessMode(FlagWriteOnly))
	assert.Equal(t, AccessWrite, ProcessAccessMode(FlagReadWrite))
}
