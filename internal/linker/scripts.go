package linker

import (
	"bytes"
	"fmt"
	"os"
)

// shebangPythonToken is the placeholder wheels ship in `.data/scripts/*`
// files in place of a real interpreter path; "w" marks a GUI script.
const shebangPythonToken = "#!python"

// RewriteShebang rewrites a leading "#!python" or "#!pythonw" shebang line
// to the target interpreter's absolute path, preserving the "w" suffix.
// Files without that placeholder are left untouched. Reports whether a
// rewrite happened.
func RewriteShebang(path, pythonPath string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	nl := bytes.IndexByte(data, '\n')

	first := data
	if nl >= 0 {
		first = data[:nl]
	}

	rest, ok := bytes.CutPrefix(first, []byte(shebangPythonToken))
	if !ok {
		return false, nil
	}

	suffix := ""
	if bytes.HasPrefix(rest, []byte("w")) {
		suffix = "w"
	}

	newFirst := "#!" + pythonPath + suffix

	newData := []byte(newFirst)
	if nl >= 0 {
		newData = append(newData, data[nl:]...)
	}

	if err := os.WriteFile(path, newData, 0o755); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}

	return true, nil
}

// MarkExecutable sets the executable bits pip and friends expect on every
// file placed under the scripts directory, regardless of shebang rewriting.
func MarkExecutable(path string) error {
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("marking %s executable: %w", path, err)
	}

	return nil
}
