package script

import "errors"

// ErrUnsupportedWindowsArch is returned when synthesising a Windows launcher
// for an architecture other than x86_64, for which no launcher stub is
// embedded.
var ErrUnsupportedWindowsArch = errors.New("unsupported Windows launcher architecture (only x86_64 is supported)")

// ErrNotWindows is returned when WindowsExecutable is called while
// targeting a non-Windows layout.
var ErrNotWindows = errors.New("windows launcher requested for a non-Windows target")
