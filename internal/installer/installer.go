// Package installer places a wheel's contents into a Python environment:
// compatibility checking, dist-info verification, streaming extraction
// through the linker, entry-point synthesis, and RECORD/INSTALLER bookkeeping.
package installer

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/bilusteknoloji/pipg/internal/downloader"
	"github.com/bilusteknoloji/pipg/internal/linker"
	"github.com/bilusteknoloji/pipg/internal/record"
	"github.com/bilusteknoloji/pipg/internal/resolver"
	"github.com/bilusteknoloji/pipg/internal/script"
	"github.com/bilusteknoloji/pipg/internal/wheel"
)

// installerName is written verbatim to each installed package's INSTALLER
// file, identifying this tool as the one that performed the install.
const installerName = "pipg"

// Download pairs a completed download with the request that produced it, so
// the installer can record the package's origin in direct_url.json.
type Download struct {
	Request downloader.Request
	Result  downloader.Result
}

// Installer defines the interface for installing downloaded wheel files.
type Installer interface {
	Install(ctx context.Context, downloads []Download) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGOOS overrides the target OS used to decide between Unix shim scripts
// and Windows launcher executables. Defaults to runtime.GOOS.
func WithGOOS(goos string) Option {
	return func(s *Service) {
		if goos != "" {
			s.goos = goos
		}
	}
}

// WithMaterializer overrides the linker.Materializer used to place archive
// entries. Defaults to linker.New() (hardlink falling back to copy).
func WithMaterializer(m *linker.Materializer) Option {
	return func(s *Service) {
		if m != nil {
			s.materializer = m
		}
	}
}

// Service installs wheels into a single target environment described by a
// linker.Layout, restricted to a set of supported compatibility tags.
type Service struct {
	layout        linker.Layout
	supportedTags []wheel.Tag
	goos          string
	materializer  *linker.Materializer
	logger        *slog.Logger
}

// compile-time proof that Service implements Installer.
var _ Installer = (*Service)(nil)

// New creates a Service targeting layout, accepting only wheels whose tags
// intersect supportedTags.
func New(layout linker.Layout, supportedTags []wheel.Tag, opts ...Option) *Service {
	s := &Service{
		layout:        layout,
		supportedTags: supportedTags,
		goos:          runtime.GOOS,
		materializer:  linker.New(),
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Install installs every download in order, stopping at the first error.
func (s *Service) Install(ctx context.Context, downloads []Download) error {
	for _, dl := range downloads {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("installation canceled: %w", err)
		}

		if err := s.installOne(dl); err != nil {
			return fmt.Errorf("installing %s: %w", dl.Request.Filename, err)
		}

		s.logger.Debug("installed", slog.String("package", dl.Request.Name))
	}

	return nil
}

// installOne runs the full install sequence for a single downloaded wheel.
func (s *Service) installOne(dl Download) error {
	if err := s.checkLayout(); err != nil {
		return err
	}

	filename, err := wheel.Parse(filepath.Base(dl.Result.FilePath))
	if err != nil {
		return err
	}

	if !filename.CompatibleWith(s.supportedTags) {
		return &IncompatibleWheelError{OS: s.goos, Arch: runtime.GOARCH}
	}

	zr, err := zip.OpenReader(dl.Result.FilePath)
	if err != nil {
		return fmt.Errorf("opening wheel: %w", err)
	}
	defer func() { _ = zr.Close() }()

	distInfoPrefix, err := wheel.FindInArchive(filename, &zr.Reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWheel, err)
	}

	distInfoName := distInfoPrefix + ".dist-info"

	metadataBytes, err := readZipEntry(&zr.Reader, distInfoName+"/METADATA")
	if err != nil {
		return fmt.Errorf("%w: reading METADATA: %v", ErrInvalidWheel, err)
	}

	metadata, err := wheel.ParseMetadata(metadataBytes)
	if err != nil {
		return err
	}

	if resolver.NormalizeName(metadata.Name) != filename.Name {
		return &MismatchedNameError{FromFilename: filename.Name, FromMetadata: metadata.Name}
	}

	metaVersion, err := pep440.Parse(metadata.Version)
	if err != nil {
		return fmt.Errorf("%w: invalid METADATA version %q: %v", ErrInvalidWheel, metadata.Version, err)
	}

	if metaVersion.Compare(filename.Version) != 0 {
		return &MismatchedVersionError{FromFilename: filename.Version.String(), FromMetadata: metadata.Version}
	}

	originalRecord, err := readOriginalRecord(&zr.Reader, distInfoName)
	if err != nil {
		return err
	}

	scratchDir, err := os.MkdirTemp("", "pipg-install-*")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratchDir) }()

	report, err := s.placeEntries(zr.File, distInfoPrefix, filename.Name, scratchDir, originalRecord)
	if err != nil {
		s.rollback(report)

		return err
	}

	distInfoDir := filepath.Join(s.layout.Purelib, distInfoName)

	scriptEntries, err := s.synthesizeEntryPoints(distInfoDir)
	if err != nil {
		s.rollback(append(report, scriptEntries...))

		return err
	}

	report = append(report, scriptEntries...)

	if dl.Request.URL != "" {
		entry, err := s.writeDirectURL(distInfoDir, dl.Request)
		if err != nil {
			s.rollback(report)

			return err
		}

		report = append(report, entry)
	}

	installerEntry, err := s.writeInstaller(distInfoDir)
	if err != nil {
		s.rollback(report)

		return err
	}

	report = append(report, installerEntry)

	if err := record.Write(distInfoDir, report); err != nil {
		s.rollback(report)

		return fmt.Errorf("writing RECORD: %w", err)
	}

	return nil
}

// checkLayout verifies the target environment's directories exist and are
// writable before any placement is attempted.
func (s *Service) checkLayout() error {
	for _, dir := range []string{s.layout.Purelib, s.layout.Scripts} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBrokenVenv, dir, err)
		}

		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrBrokenVenv, dir)
		}

		probe, err := os.CreateTemp(dir, ".pipg-write-check-*")
		if err != nil {
			return fmt.Errorf("%w: %s is not writable: %v", ErrBrokenVenv, dir, err)
		}

		_ = probe.Close()
		_ = os.Remove(probe.Name())
	}

	return nil
}

// placeEntries streams every non-directory archive entry through the
// linker, skipping the archive's own RECORD (a fresh one is always written)
// and entries that route to no recognised destination. It cross-checks
// placed hash and size against originalRecord when the wheel shipped one.
func (s *Service) placeEntries(files []*zip.File, distInfoPrefix, packageName, scratchDir string, originalRecord map[string]record.Entry) ([]record.Entry, error) {
	recordPath := distInfoPrefix + ".dist-info/RECORD"

	var entries []record.Entry

	for _, f := range files {
		if f.FileInfo().IsDir() || f.Name == recordPath {
			continue
		}

		destPath, cat, ok := linker.Route(f.Name, distInfoPrefix, packageName, s.layout)
		if !ok {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return entries, fmt.Errorf("opening %s: %w", f.Name, err)
		}

		digest, size, err := s.materializer.PlaceEntry(rc, scratchDir, destPath)
		closeErr := rc.Close()

		if err != nil {
			return entries, fmt.Errorf("placing %s: %w", f.Name, err)
		}

		if closeErr != nil {
			return entries, fmt.Errorf("closing %s: %w", f.Name, closeErr)
		}

		hashSpec := record.FormatHash(record.HashAlgorithm, digest)

		if declared, ok := originalRecord[f.Name]; ok {
			if declared.HasHash && declared.Hash != hashSpec {
				_ = os.Remove(destPath)

				return entries, &RecordMismatchError{Path: f.Name, WantHash: declared.Hash, GotHash: hashSpec, HashWrong: true}
			}

			if declared.HasSize && declared.Size != uint64(size) {
				_ = os.Remove(destPath)

				return entries, &RecordMismatchError{Path: f.Name, WantSize: declared.Size, GotSize: uint64(size), SizeWrong: true}
			}
		}

		if cat == linker.CategoryScripts {
			if _, err := linker.RewriteShebang(destPath, s.layout.PythonPath); err != nil {
				return entries, fmt.Errorf("rewriting shebang for %s: %w", destPath, err)
			}

			if err := linker.MarkExecutable(destPath); err != nil {
				return entries, err
			}

			// The shebang rewrite mutates the bytes PlaceEntry already hashed,
			// so the RECORD entry must reflect the script's final on-disk
			// content rather than its pre-rewrite digest.
			hash, rehashedSize, err := record.HashFile(destPath)
			if err != nil {
				return entries, fmt.Errorf("hashing %s: %w", destPath, err)
			}

			hashSpec = hash
			size = int64(rehashedSize)
		}

		relPath := s.relToPurelib(destPath)
		entries = append(entries, record.NewEntry(relPath, hashSpec, uint64(size)))
	}

	return entries, nil
}

// synthesizeEntryPoints reads entry_points.txt from the just-placed
// dist-info directory, if present, and writes a shim or launcher for each
// console_scripts/gui_scripts entry.
func (s *Service) synthesizeEntryPoints(distInfoDir string) ([]record.Entry, error) {
	data, err := os.ReadFile(filepath.Join(distInfoDir, "entry_points.txt"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading entry_points.txt: %w", err)
	}

	eps, err := script.ParseEntryPoints(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}

	var entries []record.Entry

	for _, ep := range eps {
		path, err := script.Synthesize(s.layout.Scripts, s.layout.PythonPath, s.goos, ep)
		if err != nil {
			return entries, fmt.Errorf("synthesizing script %s: %w", ep.Name, err)
		}

		hash, size, err := record.HashFile(path)
		if err != nil {
			return entries, fmt.Errorf("hashing script %s: %w", path, err)
		}

		entries = append(entries, record.NewEntry(s.relToPurelib(path), hash, size))
	}

	return entries, nil
}

// directURL is the subset of PEP 610's direct_url.json this installer
// populates: the origin URL and, when known, its archive hash.
type directURL struct {
	URL         string            `json:"url"`
	ArchiveInfo *directURLArchive `json:"archive_info,omitempty"`
}

type directURLArchive struct {
	Hash string `json:"hash,omitempty"`
}

// writeDirectURL records where a wheel came from, per PEP 610.
func (s *Service) writeDirectURL(distInfoDir string, req downloader.Request) (record.Entry, error) {
	doc := directURL{URL: req.URL}

	if req.SHA256 != "" {
		if _, err := hex.DecodeString(req.SHA256); err == nil {
			doc.ArchiveInfo = &directURLArchive{Hash: "sha256=" + req.SHA256}
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return record.Entry{}, fmt.Errorf("encoding direct_url.json: %w", err)
	}

	path := filepath.Join(distInfoDir, "direct_url.json")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return record.Entry{}, fmt.Errorf("writing direct_url.json: %w", err)
	}

	hash, size, err := record.HashFile(path)
	if err != nil {
		return record.Entry{}, fmt.Errorf("hashing direct_url.json: %w", err)
	}

	return record.NewEntry(s.relToPurelib(path), hash, size), nil
}

// writeInstaller writes the INSTALLER file identifying this tool.
func (s *Service) writeInstaller(distInfoDir string) (record.Entry, error) {
	path := filepath.Join(distInfoDir, "INSTALLER")

	if err := os.WriteFile(path, []byte(installerName+"\n"), 0o644); err != nil {
		return record.Entry{}, fmt.Errorf("writing INSTALLER: %w", err)
	}

	hash, size, err := record.HashFile(path)
	if err != nil {
		return record.Entry{}, fmt.Errorf("hashing INSTALLER: %w", err)
	}

	return record.NewEntry(s.relToPurelib(path), hash, size), nil
}

// relToPurelib expresses an absolute destination path relative to the
// purelib directory, matching the convention pip's own RECORD files use
// even for scripts and data files placed outside site-packages.
func (s *Service) relToPurelib(path string) string {
	rel, err := filepath.Rel(s.layout.Purelib, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}

// rollback best-effort removes every file placed so far. Failures are
// logged, not returned: a failed install has already failed for a more
// important reason, and rollback is a courtesy, not a guarantee.
func (s *Service) rollback(entries []record.Entry) {
	for _, e := range entries {
		path := filepath.Join(s.layout.Purelib, filepath.FromSlash(e.Path))

		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("rollback: failed to remove file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
}

// readZipEntry reads a single named entry's full contents from an open
// archive, or returns os.ErrNotExist if no such entry exists.
func readZipEntry(r *zip.Reader, name string) ([]byte, error) {
	f, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return io.ReadAll(f)
}

// readOriginalRecord reads and parses the wheel's own RECORD entry, keyed by
// archive path for the hash/size cross-check in placeEntries. A dist-info
// directory without a RECORD is a structural violation: RECORD is one of the
// three files every dist-info must contain, and install has no trustworthy
// manifest to verify placed files against without it.
func readOriginalRecord(r *zip.Reader, distInfoName string) (map[string]record.Entry, error) {
	data, err := readZipEntry(r, distInfoName+"/RECORD")
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: missing %s/RECORD", ErrInvalidWheel, distInfoName)
	}

	if err != nil {
		return nil, fmt.Errorf("reading RECORD: %w", err)
	}

	entries, err := record.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing RECORD: %v", ErrInvalidWheel, err)
	}

	byPath := make(map[string]record.Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}

	return byPath, nil
}
