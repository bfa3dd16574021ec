package linker

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// Mode is a single file-placement strategy, tried in the order the
// Materializer is configured with until one succeeds.
type Mode int

const (
	Reflink Mode = iota
	Hardlink
	Symlink
	Copy
)

func (m Mode) String() string {
	switch m {
	case Reflink:
		return "reflink"
	case Hardlink:
		return "hardlink"
	case Symlink:
		return "symlink"
	case Copy:
		return "copy"
	default:
		return "unknown"
	}
}

// DefaultModes is the fallback chain used when a Materializer is built
// without WithModes: hardlink where possible (cheap, same-device), copy
// otherwise. Reflink and Symlink are opt-in: reflink because it is only
// worth trying on filesystems that support it (trying it unconditionally
// just adds a failed syscall on everything else), and symlink because its
// source must outlive the install (see linker package doc and DESIGN.md).
var DefaultModes = []Mode{Hardlink, Copy}

// Option configures a Materializer.
type Option func(*Materializer)

// WithModes overrides the ordered list of link modes to try.
func WithModes(modes ...Mode) Option {
	return func(m *Materializer) {
		if len(modes) > 0 {
			m.modes = modes
		}
	}
}

// WithLogger sets the structured logger used to report fallback decisions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) {
		if l != nil {
			m.logger = l
		}
	}
}

// Materializer places files at destination paths using a configured,
// falling-back sequence of link modes.
type Materializer struct {
	modes  []Mode
	logger *slog.Logger
}

// New creates a Materializer with DefaultModes unless overridden.
func New(opts ...Option) *Materializer {
	m := &Materializer{
		modes:  DefaultModes,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// PlaceEntry streams r into a scratch file under scratchDir (computing its
// sha256 hash and size in the same pass), then materialises that scratch
// file at destPath using the configured link-mode fallback chain. It
// returns the hash (as a RECORD-style "sha256=..." spec is the caller's
// job; PlaceEntry returns the raw digest) and size of the bytes placed.
//
// scratchDir must be on the same filesystem as destPath's directory tree
// for Hardlink or Reflink to have any chance of succeeding; when it isn't,
// both degrade to Copy automatically via the usual fallback.
func (m *Materializer) PlaceEntry(r io.Reader, scratchDir, destPath string) (digest []byte, size int64, err error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, 0, fmt.Errorf("creating directory for %s: %w", destPath, err)
	}

	scratch, err := os.CreateTemp(scratchDir, "pipg-entry-*")
	if err != nil {
		return nil, 0, fmt.Errorf("creating scratch file: %w", err)
	}

	scratchPath := scratch.Name()

	h := sha256.New()

	n, copyErr := io.Copy(io.MultiWriter(scratch, h), r)
	closeErr := scratch.Close()

	if copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		_ = os.Remove(scratchPath)

		return nil, 0, fmt.Errorf("writing scratch file for %s: %w", destPath, copyErr)
	}

	usedMode, err := m.link(scratchPath, destPath)
	if err != nil {
		_ = os.Remove(scratchPath)

		return nil, 0, err
	}

	// Symlink mode points destPath at scratchPath itself, so the scratch
	// file must survive; every other mode has either copied the bytes
	// (Copy, Reflink) or created an independent hardlink (Hardlink), so the
	// scratch name can be unlinked without affecting destPath.
	if usedMode != Symlink {
		_ = os.Remove(scratchPath)
	}

	return h.Sum(nil), n, nil
}

// link materialises srcPath at destPath, trying each configured mode in
// order and falling back to the next on failure. The last mode's error is
// returned wrapped with the destination path (as a ReflinkError inside that
// wrapper when the last mode is Reflink); earlier
// failures are logged at debug level and otherwise swallowed, since falling
// back is the documented, expected behaviour.
func (m *Materializer) link(srcPath, destPath string) (Mode, error) {
	_ = os.Remove(destPath) // link/symlink targets must not already exist

	var lastErr error

	for i, mode := range m.modes {
		err := m.tryMode(mode, srcPath, destPath)
		if err == nil {
			return mode, nil
		}

		lastErr = err

		if i < len(m.modes)-1 {
			m.logger.Debug("link mode failed, falling back",
				slog.String("mode", mode.String()),
				slog.String("dest", destPath),
				slog.String("error", err.Error()),
			)

			_ = os.Remove(destPath)

			continue
		}
	}

	return 0, fmt.Errorf("placing %s: %w", destPath, lastErr)
}

func (m *Materializer) tryMode(mode Mode, srcPath, destPath string) error {
	switch mode {
	case Reflink:
		if err := ficlone(srcPath, destPath); err != nil {
			return &ReflinkError{From: srcPath, To: destPath, Err: err}
		}

		return nil
	case Hardlink:
		return os.Link(srcPath, destPath)
	case Symlink:
		abs, err := filepath.Abs(srcPath)
		if err != nil {
			return err
		}

		return os.Symlink(abs, destPath)
	case Copy:
		return copyFile(srcPath, destPath)
	default:
		return fmt.Errorf("unknown link mode %v", mode)
	}
}

// copyFile copies srcPath to destPath, writing atomically via a temp file
// and rename so a crash mid copy never leaves a truncated file at destPath.
func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer func() { _ = src.Close() }()

	t, err := renameio.TempFile("", destPath)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", destPath, err)
	}
	defer func() { _ = t.Cleanup() }()

	if _, err := io.Copy(t, src); err != nil {
		return fmt.Errorf("copying to %s: %w", destPath, err)
	}

	return t.CloseAtomicallyReplace()
}
