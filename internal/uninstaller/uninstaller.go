// Package uninstaller removes a wheel's installed files using the RECORD
// manifest written at install time, pruning any directory left empty by
// the removal.
package uninstaller

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bilusteknoloji/pipg/internal/record"
)

// Option configures an Uninstaller.
type Option func(*Uninstaller)

// WithLogger sets the structured logger used to report missing files.
func WithLogger(l *slog.Logger) Option {
	return func(u *Uninstaller) {
		if l != nil {
			u.logger = l
		}
	}
}

// Uninstaller removes an installed package's files from its RECORD.
type Uninstaller struct {
	logger *slog.Logger
}

// New creates an Uninstaller.
func New(opts ...Option) *Uninstaller {
	u := &Uninstaller{logger: slog.Default()}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Result reports how much an Uninstall call removed.
type Result struct {
	FilesRemoved int
	DirsRemoved  int
}

// Uninstall removes every path listed in distInfoDir's RECORD, resolved
// relative to installRoot, then removes any directory left empty by those
// removals up to (but not including) installRoot itself. A path listed in
// RECORD that no longer exists is logged as a warning, not treated as an
// error: partially-removed installs are routine (a previous uninstall
// attempt may have been interrupted). A missing RECORD file is fatal,
// since there is then no trustworthy list of what belongs to the package.
func (u *Uninstaller) Uninstall(distInfoDir, installRoot string) (Result, error) {
	recordPath := filepath.Join(distInfoDir, "RECORD")

	f, err := os.Open(recordPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%s: %w", distInfoDir, ErrMissingRecord)
		}

		return Result{}, fmt.Errorf("opening %s: %w", recordPath, err)
	}

	entries, err := record.Parse(f)
	closeErr := f.Close()

	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", recordPath, err)
	}

	if closeErr != nil {
		return Result{}, fmt.Errorf("closing %s: %w", recordPath, closeErr)
	}

	var result Result

	parents := make(map[string]struct{})

	for _, entry := range entries {
		absPath := filepath.Join(installRoot, filepath.FromSlash(entry.Path))

		if err := os.Remove(absPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				u.logger.Warn("recorded file already missing",
					slog.String("path", absPath),
				)

				continue
			}

			return result, fmt.Errorf("removing %s: %w", absPath, err)
		}

		result.FilesRemoved++
		parents[filepath.Dir(absPath)] = struct{}{}
	}

	result.DirsRemoved += u.pruneEmptyDirs(parents, installRoot)

	return result, nil
}

// pruneEmptyDirs repeatedly removes directories that became empty,
// walking upward from each candidate toward installRoot (exclusive).
// It loops until a full pass removes nothing, since emptying a child
// directory can make its parent empty in turn.
func (u *Uninstaller) pruneEmptyDirs(candidates map[string]struct{}, installRoot string) int {
	root := filepath.Clean(installRoot)
	removed := 0

	for {
		progressed := false

		dirs := make([]string, 0, len(candidates))
		for dir := range candidates {
			dirs = append(dirs, dir)
		}

		// Deepest first, so a child is always attempted before its parent
		// within the same pass.
		sort.Slice(dirs, func(i, j int) bool {
			return len(dirs[i]) > len(dirs[j])
		})

		for _, dir := range dirs {
			delete(candidates, dir)

			clean := filepath.Clean(dir)
			if clean == root || !strings.HasPrefix(clean, root+string(filepath.Separator)) {
				continue
			}

			if err := os.Remove(clean); err != nil {
				continue
			}

			removed++
			progressed = true
			candidates[filepath.Dir(clean)] = struct{}{}
		}

		if !progressed {
			break
		}
	}

	return removed
}
