// Package linker materialises wheel archive entries into a target Python
// environment, routing each entry to purelib/platlib/scripts/include/data by
// its archive path and applying a configurable, falling-back file
// placement strategy (reflink, hardlink, symlink, or copy).
//
// Symlink mode points the destination at the scratch file PlaceEntry wrote
// the archive entry's bytes into, so it only behaves correctly when
// scratchDir is a persistent, content-addressed cache the caller controls
// the lifetime of. DefaultModes therefore never includes Symlink: the
// installer's own scratch directory is a per-install temp dir, not a
// persistent cache, so Symlink is opt-in for callers that supply one.
package linker

import "path/filepath"

// Layout describes the absolute destination directories of a target Python
// environment, plus the facts needed to route and rewrite entries.
type Layout struct {
	Purelib string
	Platlib string
	Scripts string
	Include string
	Data    string

	PythonPath    string // absolute path to the interpreter, for shebang rewriting
	PythonVersion [2]int // (major, minor)
	OSName        string // "posix" or "nt"
}

// Category is the destination class an archive entry routes to.
type Category int

const (
	CategoryPurelib Category = iota
	CategoryPlatlib
	CategoryScripts
	CategoryInclude
	CategoryData
)

// Route determines the destination path and category for a single archive
// entry. distInfoPrefix is the dist-info directory name without its
// ".dist-info" suffix (e.g. "flask-3.0.0"); it is also the prefix of the
// wheel's optional ".data" directory. packageName is used to namespace
// header files under layout.Include, per the ecosystem convention of
// installing each package's headers into their own subdirectory.
//
// ok is false for entries under an unrecognised ".data/*" subdirectory,
// which are skipped rather than placed anywhere.
func Route(entryName, distInfoPrefix, packageName string, layout Layout) (destPath string, cat Category, ok bool) {
	dataPrefix := distInfoPrefix + ".data/"

	rest, isData := cutPrefix(entryName, dataPrefix)
	if !isData {
		return joinRel(layout.Purelib, entryName), CategoryPurelib, true
	}

	subdir, file, hasFile := cutFirstSlash(rest)
	if !hasFile || file == "" {
		return "", 0, false
	}

	switch subdir {
	case "purelib":
		return joinRel(layout.Purelib, file), CategoryPurelib, true
	case "platlib":
		return joinRel(layout.Platlib, file), CategoryPlatlib, true
	case "headers":
		return joinRel(layout.Include, packageName+"/"+file), CategoryInclude, true
	case "scripts":
		return joinRel(layout.Scripts, file), CategoryScripts, true
	case "data":
		return joinRel(layout.Data, file), CategoryData, true
	default:
		return "", 0, false
	}
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}

	return s[len(prefix):], true
}

func cutFirstSlash(s string) (before, after string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}

	return "", "", false
}

// joinRel joins a base directory with a slash-separated archive-relative
// path, converting it to the host's path separator.
func joinRel(base, rel string) string {
	return filepath.Join(base, filepath.FromSlash(rel))
}
