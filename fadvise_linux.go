//go:build linux

package ar

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseRandom tells the kernel that content is read at scattered offsets,
// which turns off readahead for the archive.
func adviseRandom(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
}
