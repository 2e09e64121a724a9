//go:build linux

package vlog

import (
	"os"

	"golang.org/x/sys/unix"
)

// seekFirstLive returns the lowest offset whose filesystem block is
// still allocated, using SEEK_DATA to skip over holes punched by a
// previous GC run. If the filesystem doesn't support SEEK_DATA (or the
// file is empty) it falls back to offset 0, which is always safe: the
// recovery scan in Log.recoverTail will simply walk forward over any
// leftover garbage until it finds a valid record.
func seekFirstLive(f *os.File, size uint64) (uint64, error) {
	if size == 0 {
		return 0, nil
	}
	off, err := unix.Seek(int(f.Fd()), 0, unix.SEEK_DATA)
	if err != nil {
		return 0, nil
	}
	if off < 0 {
		return 0, nil
	}
	return uint64(off), nil
}

// punchHole deallocates the filesystem blocks covering [offset, offset+n)
// while preserving the file's logical length, using fallocate's
// PUNCH_HOLE mode.
func punchHole(f *os.File, offset, n int64) error {
	if n <= 0 {
		return nil
	}
	return unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, offset, n)
}
