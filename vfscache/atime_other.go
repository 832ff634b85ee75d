//go:build !unix

package vfscache

import (
	"os"
	"time"
)

// atime falls back to the modification time on platforms with no portable
// access-time field, mirroring lchtimes.go's non-unix stub.
func atime(info os.FileInfo) time.Time {
	return info.ModTime()
}
