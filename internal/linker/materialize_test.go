package linker_test

import (
	"bytes"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/bilusteknoloji/pipg/internal/linker"
)

func TestPlaceEntryCopyModeWritesContentAndHash(t *testing.T) {
	dir := t.TempDir()
	destPath := filepath.Join(dir, "pkg", "mod.py")

	content := []byte("print('hello')\n")
	want := sha256.Sum256(content)

	m := linker.New(linker.WithModes(linker.Copy))

	digest, size, err := m.PlaceEntry(bytes.NewReader(content), dir, destPath)
	if err != nil {
		t.Fatalf("PlaceEntry: %v", err)
	}

	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}

	if !bytes.Equal(digest, want[:]) {
		t.Errorf("digest mismatch")
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading dest: %v", err)
	}

	if !bytes.Equal(got, content) {
		t.Errorf("dest content = %q, want %q", got, content)
	}
}

func TestPlaceEntryHardlinkThenCopyPlacesContent(t *testing.T) {
	dir := t.TempDir()
	destPath := filepath.Join(dir, "out", "mod.py")

	content := []byte("data")

	m := linker.New(linker.WithModes(linker.Hardlink, linker.Copy))

	_, _, err := m.PlaceEntry(bytes.NewReader(content), dir, destPath)
	if err != nil {
		t.Fatalf("PlaceEntry: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading dest: %v", err)
	}

	if !bytes.Equal(got, content) {
		t.Errorf("dest content = %q, want %q", got, content)
	}
}

func TestPlaceEntrySymlinkKeepsScratchFile(t *testing.T) {
	scratchDir := t.TempDir()
	destDir := t.TempDir()
	destPath := filepath.Join(destDir, "mod.py")

	content := []byte("payload")

	m := linker.New(linker.WithModes(linker.Symlink))

	_, _, err := m.PlaceEntry(bytes.NewReader(content), scratchDir, destPath)
	if err != nil {
		t.Fatalf("PlaceEntry: %v", err)
	}

	info, err := os.Lstat(destPath)
	if err != nil {
		t.Fatalf("lstat dest: %v", err)
	}

	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("destPath is not a symlink")
	}

	target, err := os.Readlink(destPath)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}

	if _, err := os.Stat(target); err != nil {
		t.Errorf("symlink target %q should still exist: %v", target, err)
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		t.Fatalf("reading scratchDir: %v", err)
	}

	if len(entries) != 1 {
		t.Errorf("expected scratch file to remain, got %d entries", len(entries))
	}
}

func TestPlaceEntryRemovesExistingDest(t *testing.T) {
	dir := t.TempDir()
	destPath := filepath.Join(dir, "mod.py")

	if err := os.WriteFile(destPath, []byte("old"), 0o644); err != nil {
		t.Fatalf("seeding dest: %v", err)
	}

	m := linker.New(linker.WithModes(linker.Copy))

	_, _, err := m.PlaceEntry(bytes.NewReader([]byte("new")), dir, destPath)
	if err != nil {
		t.Fatalf("PlaceEntry: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading dest: %v", err)
	}

	if string(got) != "new" {
		t.Errorf("dest content = %q, want %q", got, "new")
	}
}

func TestModeString(t *testing.T) {
	tests := map[linker.Mode]string{
		linker.Reflink:  "reflink",
		linker.Hardlink: "hardlink",
		linker.Symlink:  "symlink",
		linker.Copy:     "copy",
	}

	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
