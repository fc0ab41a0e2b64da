// SPDX-License-Identifier: MIT

//go:build unix

package fs

import (
	"os"
	"syscall"
)

// FileIdentity returns the device/inode tuple for path. The second return
// is false when the platform does not expose one.
func FileIdentity(path string) (Identity, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Identity{}, false, err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Identity{}, false, nil
	}
	return Identity{Device: int64(stat.Dev), Inode: int64(stat.Ino)}, true, nil
}
