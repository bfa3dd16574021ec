package script

import (
	"fmt"
	"os"
	"path/filepath"
)

// Synthesize writes an entry point's executable shim into dir and returns
// its absolute path. On non-Windows targets this is a text shim marked
// executable; on Windows it is a native launcher stub with the Python
// payload appended.
func Synthesize(dir, pythonPath, goos string, ep EntryPoint) (string, error) {
	path := filepath.Join(dir, ep.Filename(goos))

	var content []byte

	if goos == "windows" {
		out, err := WindowsExecutable(goos, AMD64, pythonPath, ep)
		if err != nil {
			return "", err
		}

		content = out
	} else {
		content = UnixScript(pythonPath, ep)
	}

	if err := os.WriteFile(path, content, 0o755); err != nil {
		return "", fmt.Errorf("writing script %s: %w", path, err)
	}

	return path, nil
}
