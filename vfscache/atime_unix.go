//go:build unix

package vfscache

import (
	"os"
	"syscall"
	"time"
)

// atime extracts the access time from a FileInfo's platform Sys() value,
// grounded on backend/local's metadata_unix.go use of syscall.Stat_t.
func atime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(st.Atim.Unix())
}
