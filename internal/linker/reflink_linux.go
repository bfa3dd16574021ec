//go:build linux

package linker

import (
	"os"

	"golang.org/x/sys/unix"
)

// ficlone clones src's extents into dst via the FICLONE ioctl, the Linux
// mechanism for copy-on-write reflinks on filesystems that support it
// (btrfs, XFS with reflink=1, overlayfs on top of those). Returns the
// ioctl's error unchanged so the caller can decide whether it is a genuine
// failure or simply "this filesystem doesn't support reflink".
func ficlone(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	return unix.IoctlFileClone(int(dst.Fd()), int(src.Fd()))
}
