// Package wire defines the fixed-width structs exchanged as opaque byte
// arrays between client and server (spec.md §6): Stat, FileInfo and
// Timespec. Portability across heterogeneous hosts is not a goal (spec.md
// §6), so these are marshalled with a single fixed little-endian layout
// rather than any self-describing encoding.
package wire

import "encoding/binary"

// Timespec is a wall-clock time as (seconds, nanoseconds), the wire form of
// POSIX struct timespec.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// TimespecSize is the fixed wire size of a marshalled Timespec.
const TimespecSize = 16
const timespecSize = TimespecSize

func (t Timespec) marshal(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(t.Sec))
	binary.LittleEndian.PutUint64(b[8:16], uint64(t.Nsec))
}

// Marshal writes t to a TimespecSize-byte buffer.
func (t Timespec) Marshal() []byte {
	b := make([]byte, TimespecSize)
	t.marshal(b)
	return b
}

func unmarshalTimespec(b []byte) Timespec {
	return Timespec{
		Sec:  int64(binary.LittleEndian.Uint64(b[0:8])),
		Nsec: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
}

// UnmarshalTimespec parses a TimespecSize-byte buffer produced by Marshal.
func UnmarshalTimespec(b []byte) Timespec {
	return unmarshalTimespec(b)
}

// Stat is the subset of POSIX struct stat this system needs: size, mode,
// and mtime/atime. It is what getattr returns and what upload/download use
// to keep client and server times synchronized (spec.md §4.1 freshness
// rule 2).
type Stat struct {
	Size  int64
	Mode  uint32
	Mtime Timespec
	Atime Timespec
}

// StatSize is the fixed wire size of a marshalled Stat.
const StatSize = 8 + 4 + 4 /*pad*/ + timespecSize*2

// Marshal writes s to a StatSize-byte buffer.
func (s Stat) Marshal() []byte {
	b := make([]byte, StatSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(s.Size))
	binary.LittleEndian.PutUint32(b[8:12], s.Mode)
	s.Mtime.marshal(b[16 : 16+timespecSize])
	s.Atime.marshal(b[16+timespecSize : 16+2*timespecSize])
	return b
}

// UnmarshalStat parses a StatSize-byte buffer produced by Marshal.
func UnmarshalStat(b []byte) Stat {
	return Stat{
		Size:  int64(binary.LittleEndian.Uint64(b[0:8])),
		Mode:  binary.LittleEndian.Uint32(b[8:12]),
		Mtime: unmarshalTimespec(b[16 : 16+timespecSize]),
		Atime: unmarshalTimespec(b[16+timespecSize : 16+2*timespecSize]),
	}
}

// FileInfo is the wire analogue of struct fuse_file_info: the access flags
// the client requested and, once opened, the remote descriptor the server
// assigned. open's FileInfo argument is in-out (spec.md §6): the client
// sends Flags, the server echoes it back with Handle filled in.
type FileInfo struct {
	Flags  int32
	Handle uint64
}

// FileInfoSize is the fixed wire size of a marshalled FileInfo.
const FileInfoSize = 4 + 4 /*pad*/ + 8

// Marshal writes fi to a FileInfoSize-byte buffer.
func (fi FileInfo) Marshal() []byte {
	b := make([]byte, FileInfoSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(fi.Flags))
	binary.LittleEndian.PutUint64(b[8:16], fi.Handle)
	return b
}

// UnmarshalFileInfo parses a FileInfoSize-byte buffer produced by Marshal.
func UnmarshalFileInfo(b []byte) FileInfo {
	return FileInfo{
		Flags:  int32(binary.LittleEndian.Uint32(b[0:4])),
		Handle: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// AccessMode mirrors the original's AccessType: whether a set of open
// flags requests read-only or read-write/write access.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
)

// O_ACCMODE-equivalent flag bits this system recognizes; only the
// read/write distinction in spec.md matters, so flags are modelled as a
// small bitset rather than importing host-specific open(2) constants.
const (
	FlagWriteOnly = 1 << 0
	FlagReadWrite = 1 << 1
)

// ProcessAccessMode classifies a flags value the way the original
// processAccessType did: anything other than pure read-only is treated as
// requesting write access.
func ProcessAccessMode(flags int32) AccessMode {
	if flags&(FlagWriteOnly|FlagReadWrite) != 0 {
		return AccessWrite
	}
	return AccessRead
}
