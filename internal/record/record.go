// Package record parses and emits RECORD files: the CSV-shaped manifest of
// installed paths, content hashes, and sizes that PEP 376 wheel installs
// maintain inside a dist-info directory.
package record

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio"
)

// HashAlgorithm is the only digest algorithm this implementation writes or
// verifies, matching the ecosystem's current convention.
const HashAlgorithm = "sha256"

// Entry is a single RECORD row: a relative path with an optional hash and
// size. Hash and Size are both absent ("", false) for the RECORD's own line
// and may be absent for other rows the wheel chose not to record.
type Entry struct {
	Path    string
	Hash    string // "" if absent
	HasHash bool
	Size    uint64
	HasSize bool
}

// NewEntry builds an Entry with a hash and size already known.
func NewEntry(path, hash string, size uint64) Entry {
	return Entry{Path: path, Hash: hash, HasHash: true, Size: size, HasSize: true}
}

// selfPath is the relative path of a RECORD file given its dist-info dir name.
func selfPath(distInfoDirName string) string {
	return filepath.ToSlash(filepath.Join(distInfoDirName, "RECORD"))
}

// Parse reads a RECORD file's contents: a three-column, headerless CSV with
// LF line endings. Empty hash/size fields are permitted. A hash field must
// be of the form "{algorithm}={urlsafe-base64-nopad-digest}". A non-empty
// size that does not fit a uint64 is rejected.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.ReuseRecord = true

	var entries []Entry

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parsing RECORD: %w", err)
		}

		entry := Entry{Path: row[0]}

		if row[1] != "" {
			entry.Hash = row[1]
			entry.HasHash = true

			if _, _, err := SplitHash(row[1]); err != nil {
				return nil, fmt.Errorf("parsing RECORD entry %q: %w", row[0], err)
			}
		}

		if row[2] != "" {
			size, err := strconv.ParseUint(row[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing RECORD entry %q: invalid size %q: %w", row[0], row[2], err)
			}

			entry.Size = size
			entry.HasSize = true
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// SplitHash decodes a "{algorithm}={digest}" hash spec, where digest is
// URL-safe base64 without padding.
func SplitHash(spec string) (algorithm string, digest []byte, err error) {
	algorithm, encoded, ok := strings.Cut(spec, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid hash spec %q: missing '='", spec)
	}

	digest, err = base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("invalid hash spec %q: %w", spec, err)
	}

	return algorithm, digest, nil
}

// FormatHash encodes a raw digest as an "{algorithm}={digest}" hash spec
// using URL-safe base64 without padding.
func FormatHash(algorithm string, digest []byte) string {
	return algorithm + "=" + base64.RawURLEncoding.EncodeToString(digest)
}

// HashFile computes the sha256 digest and size of a file, returning the
// digest formatted as a RECORD-compatible hash spec.
func HashFile(path string) (hash string, size uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}

	return FormatHash(HashAlgorithm, h.Sum(nil)), uint64(n), nil
}

// Write emits entries as a RECORD file at distInfoDir/RECORD. The RECORD's
// own line is always appended last with an empty hash and size, regardless
// of what distInfoDirName's entry (if present in entries) already says: per
// the ecosystem's convention, any self-hash the archive shipped with is
// ignored and overwritten silently.
//
// The file is written atomically via a temp file + rename so a crash mid
// install never leaves a truncated RECORD behind.
func Write(distInfoDir string, entries []Entry) error {
	recordPath := filepath.Join(distInfoDir, "RECORD")
	self := selfPath(filepath.Base(distInfoDir))

	t, err := renameio.TempFile("", recordPath)
	if err != nil {
		return fmt.Errorf("creating RECORD temp file: %w", err)
	}
	defer func() { _ = t.Cleanup() }()

	w := csv.NewWriter(t)

	for _, e := range entries {
		if e.Path == self {
			continue // the self-entry is always appended last, below.
		}

		if err := writeEntry(w, e); err != nil {
			return err
		}
	}

	if err := writeEntry(w, Entry{Path: self}); err != nil {
		return err
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing RECORD: %w", err)
	}

	return t.CloseAtomicallyReplace()
}

func writeEntry(w *csv.Writer, e Entry) error {
	sizeStr := ""
	if e.HasSize {
		sizeStr = strconv.FormatUint(e.Size, 10)
	}

	hashStr := ""
	if e.HasHash {
		hashStr = e.Hash
	}

	if err := w.Write([]string{e.Path, hashStr, sizeStr}); err != nil {
		return fmt.Errorf("writing RECORD entry %q: %w", e.Path, err)
	}

	return nil
}
