package wheel

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/bilusteknoloji/pipg/internal/resolver"
)

// Entry is a generic (payload, path) pair the locator searches over. path
// uses forward slashes regardless of the host OS, matching zip conventions.
type Entry[T any] struct {
	Payload T
	Path    string
}

// Find locates the unique `{name}-{version}.dist-info` directory among
// entries, matching name and version against filename after normalization.
// It returns the matching entry's payload and the dist-info prefix (the
// directory name without the ".dist-info" suffix).
//
// This is shared by FindInArchive and FindInDir, per the design note that an
// iterator-shaped locator can serve both in-archive and on-disk searches.
func Find[T any](filename Filename, entries []Entry[T]) (T, string, error) {
	var (
		matchPayload T
		matchPrefix  string
		candidates   []string
	)

	for _, e := range entries {
		dir, file, ok := strings.Cut(e.Path, "/")
		if !ok || file != "METADATA" {
			continue
		}

		prefix, ok := strings.CutSuffix(dir, ".dist-info")
		if !ok {
			continue
		}

		name, versionStr, ok := cutLastDash(prefix)
		if !ok {
			continue
		}

		if resolver.NormalizeName(name) != filename.Name {
			continue
		}

		version, err := pep440.Parse(versionStr)
		if err != nil || version.Compare(filename.Version) != 0 {
			continue
		}

		candidates = append(candidates, prefix)
		matchPayload = e.Payload
		matchPrefix = prefix
	}

	switch len(candidates) {
	case 0:
		var zero T

		return zero, "", ErrMissingDistInfo
	case 1:
		return matchPayload, matchPrefix, nil
	default:
		sort.Strings(candidates)

		var zero T

		return zero, "", &MultipleDistInfoError{Candidates: candidates}
	}
}

// cutLastDash splits "name-version" at the last dash, as dist-info
// directory stems do (package names never contain a trailing numeric
// segment that could be confused with a version after normalization).
func cutLastDash(s string) (name, version string, ok bool) {
	idx := strings.LastIndex(s, "-")
	if idx < 0 {
		return "", "", false
	}

	return s[:idx], s[idx+1:], true
}

// FindInArchive locates the dist-info directory inside an open wheel
// archive. Returns the dist-info prefix (without ".dist-info").
func FindInArchive(filename Filename, r *zip.Reader) (string, error) {
	entries := make([]Entry[*zip.File], 0, len(r.File))
	for _, f := range r.File {
		entries = append(entries, Entry[*zip.File]{Payload: f, Path: f.Name})
	}

	_, prefix, err := Find(filename, entries)
	if err != nil {
		return "", err
	}

	return prefix, nil
}

// FindByNameInDir locates the dist-info directory for a package by name
// alone, ignoring version: the caller rarely knows in advance which
// version of a package is installed when asking to remove it. Name is
// normalized before comparison. Ambiguity (more than one installed version
// of the same package) is reported the same way FindInDir reports multiple
// dist-info directories for one version.
func FindByNameInDir(name, root string) (string, error) {
	wantName := resolver.NormalizeName(name)

	children, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", root, err)
	}

	var candidates []string

	for _, c := range children {
		if !c.IsDir() || !strings.HasSuffix(c.Name(), ".dist-info") {
			continue
		}

		prefix := strings.TrimSuffix(c.Name(), ".dist-info")

		pkgName, _, ok := cutLastDash(prefix)
		if !ok || resolver.NormalizeName(pkgName) != wantName {
			continue
		}

		candidates = append(candidates, c.Name())
	}

	switch len(candidates) {
	case 0:
		return "", ErrMissingDistInfo
	case 1:
		return filepath.Join(root, candidates[0]), nil
	default:
		sort.Strings(candidates)

		return "", &MultipleDistInfoError{Candidates: candidates}
	}
}

// FindInDir locates the dist-info directory among the immediate children of
// an installed package root (e.g. site-packages), for exact-version
// uninstall-by-name lookups. Returns the absolute path of the dist-info
// directory.
func FindInDir(filename Filename, root string) (string, error) {
	children, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", root, err)
	}

	entries := make([]Entry[string], 0, len(children))

	for _, c := range children {
		if !c.IsDir() || !strings.HasSuffix(c.Name(), ".dist-info") {
			continue
		}

		metaPath := c.Name() + "/METADATA"
		entries = append(entries, Entry[string]{Payload: filepath.Join(root, c.Name()), Path: metaPath})
	}

	abs, _, err := Find(filename, entries)
	if err != nil {
		return "", err
	}

	return abs, nil
}
