//go:build !linux

package linker

import "errors"

// errReflinkUnsupported is returned on platforms without a wired reflink
// syscall (anything but Linux, here); the Materializer treats it as an
// ordinary fallback trigger, not a fatal error.
var errReflinkUnsupported = errors.New("reflink is not supported on this platform")

func ficlone(srcPath, dstPath string) error {
	return errReflinkUnsupported
}
