package script

import (
	"fmt"

	"github.com/bilusteknoloji/pipg/internal/script/launchers"
)

// Arch identifies a target CPU architecture for a Windows launcher.
type Arch int

const (
	AMD64 Arch = iota
	Other      // any architecture other than x86_64; always unsupported
)

// WindowsExecutable renders the bytes of a native launcher executable for an
// entry point: the architecture-and-kind-selected launcher stub, followed by
// the shebang line and Python prelude as its trailing payload. The launcher
// reads its own tail at process start to find the script to run.
//
// goos must be "windows"; any other value returns ErrNotWindows. arch must
// be AMD64; any other value returns ErrUnsupportedWindowsArch.
func WindowsExecutable(goos string, arch Arch, pythonPath string, ep EntryPoint) ([]byte, error) {
	if goos != "windows" {
		return nil, ErrNotWindows
	}

	if arch != AMD64 {
		return nil, ErrUnsupportedWindowsArch
	}

	stub := launchers.ConsoleAMD64
	if ep.Kind == GUI {
		stub = launchers.GUIAMD64
	}

	payload := fmt.Sprintf("#!%s\r\n%s", pythonPath, prelude(ep.Module, ep.Attr))

	out := make([]byte, 0, len(stub)+len(payload))
	out = append(out, stub...)
	out = append(out, payload...)

	return out, nil
}

// Filename returns the executable filename for an entry point on Windows:
// "{name}.exe" for console scripts, "{name}w.exe" for GUI scripts.
func (ep EntryPoint) Filename(goos string) string {
	if goos != "windows" {
		return ep.Name
	}

	if ep.Kind == GUI {
		return ep.Name + "w.exe"
	}

	return ep.Name + ".exe"
}
