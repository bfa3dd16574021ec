package installer_test

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bilusteknoloji/pipg/internal/downloader"
	"github.com/bilusteknoloji/pipg/internal/installer"
	"github.com/bilusteknoloji/pipg/internal/linker"
	"github.com/bilusteknoloji/pipg/internal/record"
	"github.com/bilusteknoloji/pipg/internal/uninstaller"
	"github.com/bilusteknoloji/pipg/internal/wheel"
)

const sixContent = "# six compatibility library\n"
const sixHash = "sha256=3lraAGwq10NdPJVIExH6jpmsCZUh3L-QJQqBJEjePZQ"

func createWheel(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating wheel file: %v", err)
	}

	w := zip.NewWriter(f)

	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", name, err)
		}

		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("writing zip entry %s: %v", name, err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("closing wheel file: %v", err)
	}
}

func testLayout(t *testing.T) linker.Layout {
	t.Helper()

	prefix := t.TempDir()
	purelib := filepath.Join(prefix, "lib", "python3.12", "site-packages")
	scripts := filepath.Join(prefix, "bin")

	for _, dir := range []string{purelib, scripts} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
	}

	return linker.Layout{
		Purelib:       purelib,
		Platlib:       purelib,
		Scripts:       scripts,
		Include:       filepath.Join(prefix, "include"),
		Data:          prefix,
		PythonPath:    filepath.Join(prefix, "bin", "python3"),
		PythonVersion: [2]int{3, 12},
		OSName:        "posix",
	}
}

func sixWheelFixture(t *testing.T, dir string, extraEntries map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "six-1.16.0-py2.py3-none-any.whl")

	entries := map[string]string{
		"six.py": sixContent,
		"six-1.16.0.dist-info/METADATA": "Metadata-Version: 2.1\nName: six\nVersion: 1.16.0\nSummary: compat\n\n",
		"six-1.16.0.dist-info/WHEEL":    "Wheel-Version: 1.0\nGenerator: bdist_wheel\nRoot-Is-Purelib: true\nTag: py2-none-any\nTag: py3-none-any\n",
		"six-1.16.0.dist-info/RECORD":   "six.py," + sixHash + ",28\nsix-1.16.0.dist-info/RECORD,,\n",
	}

	for k, v := range extraEntries {
		entries[k] = v
	}

	createWheel(t, path, entries)

	return path
}

func supportedTags() []wheel.Tag {
	return []wheel.Tag{{Python: "py3", ABI: "none", Platform: "any"}}
}

func TestInstallSimpleWheel(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()
	wheelPath := sixWheelFixture(t, wheelDir, nil)

	svc := installer.New(layout, supportedTags())

	downloads := []installer.Download{
		{
			Request: downloader.Request{Name: "six", Version: "1.16.0", Filename: filepath.Base(wheelPath)},
			Result:  downloader.Result{Name: "six", Version: "1.16.0", FilePath: wheelPath},
		},
	}

	if err := svc.Install(context.Background(), downloads); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	sixPath := filepath.Join(layout.Purelib, "six.py")

	content, err := os.ReadFile(sixPath)
	if err != nil {
		t.Fatalf("reading six.py: %v", err)
	}

	if string(content) != sixContent {
		t.Errorf("six.py content = %q, want %q", content, sixContent)
	}

	distInfoDir := filepath.Join(layout.Purelib, "six-1.16.0.dist-info")

	installerContent, err := os.ReadFile(filepath.Join(distInfoDir, "INSTALLER"))
	if err != nil {
		t.Fatalf("reading INSTALLER: %v", err)
	}

	if string(installerContent) != "pipg\n" {
		t.Errorf("INSTALLER content = %q, want %q", installerContent, "pipg\n")
	}

	if _, err := os.Stat(filepath.Join(distInfoDir, "RECORD")); err != nil {
		t.Errorf("RECORD not written: %v", err)
	}
}

func TestInstallIncompatibleWheelRejected(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()
	wheelPath := sixWheelFixture(t, wheelDir, nil)

	svc := installer.New(layout, []wheel.Tag{{Python: "cp39", ABI: "cp39", Platform: "manylinux_2_17_x86_64"}})

	downloads := []installer.Download{
		{Result: downloader.Result{FilePath: wheelPath}},
	}

	err := svc.Install(context.Background(), downloads)
	if err == nil {
		t.Fatal("expected an incompatibility error")
	}

	var incompat *installer.IncompatibleWheelError
	if !errors.As(err, &incompat) {
		t.Fatalf("err = %v, want IncompatibleWheelError", err)
	}
}

func TestInstallMismatchedNameRejected(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()

	path := filepath.Join(wheelDir, "six-1.16.0-py2.py3-none-any.whl")
	createWheel(t, path, map[string]string{
		"six.py":                         sixContent,
		"six-1.16.0.dist-info/METADATA": "Metadata-Version: 2.1\nName: nine\nVersion: 1.16.0\n\n",
		"six-1.16.0.dist-info/RECORD":   "",
	})

	svc := installer.New(layout, supportedTags())

	err := svc.Install(context.Background(), []installer.Download{
		{Result: downloader.Result{FilePath: path}},
	})

	var mismatch *installer.MismatchedNameError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want MismatchedNameError", err)
	}
}

func TestInstallMissingRecordRejected(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()

	path := filepath.Join(wheelDir, "six-1.16.0-py2.py3-none-any.whl")
	createWheel(t, path, map[string]string{
		"six.py":                         sixContent,
		"six-1.16.0.dist-info/METADATA": "Metadata-Version: 2.1\nName: six\nVersion: 1.16.0\n\n",
	})

	svc := installer.New(layout, supportedTags())

	err := svc.Install(context.Background(), []installer.Download{
		{Result: downloader.Result{FilePath: path}},
	})
	if !errors.Is(err, installer.ErrInvalidWheel) {
		t.Fatalf("err = %v, want ErrInvalidWheel", err)
	}
}

func TestInstallRecordHashMismatchRejected(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()

	path := filepath.Join(wheelDir, "six-1.16.0-py2.py3-none-any.whl")
	createWheel(t, path, map[string]string{
		"six.py":                         sixContent,
		"six-1.16.0.dist-info/METADATA": "Metadata-Version: 2.1\nName: six\nVersion: 1.16.0\n\n",
		"six-1.16.0.dist-info/RECORD":   "six.py,sha256=AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8,28\n",
	})

	svc := installer.New(layout, supportedTags())

	err := svc.Install(context.Background(), []installer.Download{
		{Result: downloader.Result{FilePath: path}},
	})

	var mismatch *installer.RecordMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want RecordMismatchError", err)
	}

	if _, err := os.Stat(filepath.Join(layout.Purelib, "six.py")); !os.IsNotExist(err) {
		t.Errorf("corrupted file should not remain after RecordMismatch, stat err = %v", err)
	}
}

func TestInstallSynthesizesConsoleScript(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()

	wheelPath := sixWheelFixture(t, wheelDir, map[string]string{
		"six-1.16.0.dist-info/entry_points.txt": "[console_scripts]\nsix-script = six:main\n",
	})

	svc := installer.New(layout, supportedTags())

	err := svc.Install(context.Background(), []installer.Download{
		{Result: downloader.Result{FilePath: wheelPath}},
	})
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	scriptPath := filepath.Join(layout.Scripts, "six-script")

	content, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("reading synthesized script: %v", err)
	}

	if len(content) == 0 {
		t.Fatal("expected non-empty script")
	}

	info, err := os.Stat(scriptPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("expected script to be executable")
	}
}

// TestInstallRecordsRewrittenScriptHash exercises a wheel-shipped
// `.data/scripts/*` file with a `#!python` placeholder shebang: the RECORD
// entry for it must reflect the bytes left on disk *after* RewriteShebang
// runs, not the pre-rewrite digest PlaceEntry computed while streaming the
// archive's original content.
func TestInstallRecordsRewrittenScriptHash(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()

	const scriptBody = "#!python\nimport six\nsix.main()\n"

	wheelPath := sixWheelFixture(t, wheelDir, map[string]string{
		"six-1.16.0.data/scripts/run-six": scriptBody,
	})

	svc := installer.New(layout, supportedTags())

	if err := svc.Install(context.Background(), []installer.Download{
		{Result: downloader.Result{FilePath: wheelPath}},
	}); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	scriptPath := filepath.Join(layout.Scripts, "run-six")

	wantHash, wantSize, err := record.HashFile(scriptPath)
	if err != nil {
		t.Fatalf("hashing installed script: %v", err)
	}

	onDisk, err := os.ReadFile(scriptPath)
	if err != nil {
		t.Fatalf("reading installed script: %v", err)
	}

	if strings.HasPrefix(string(onDisk), "#!python") {
		t.Fatalf("expected shebang to be rewritten, got %q", onDisk)
	}

	recordData, err := os.ReadFile(filepath.Join(layout.Purelib, "six-1.16.0.dist-info", "RECORD"))
	if err != nil {
		t.Fatalf("reading RECORD: %v", err)
	}

	entries, err := record.Parse(strings.NewReader(string(recordData)))
	if err != nil {
		t.Fatalf("parsing RECORD: %v", err)
	}

	var found *record.Entry
	for i := range entries {
		if strings.HasSuffix(entries[i].Path, "run-six") {
			found = &entries[i]
		}
	}

	if found == nil {
		t.Fatal("no RECORD entry for run-six")
	}

	if found.Hash != wantHash {
		t.Errorf("RECORD hash = %q, want %q (post-rewrite digest)", found.Hash, wantHash)
	}

	if found.Size != wantSize {
		t.Errorf("RECORD size = %d, want %d (post-rewrite size)", found.Size, wantSize)
	}
}

func TestInstallWritesDirectURL(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()
	wheelPath := sixWheelFixture(t, wheelDir, nil)

	svc := installer.New(layout, supportedTags())

	req := downloader.Request{
		Name:     "six",
		Version:  "1.16.0",
		URL:      "https://files.pythonhosted.org/packages/six/six-1.16.0-py2.py3-none-any.whl",
		SHA256:   "8abb2f1d86890a2dfb989f9a77cfcfd3e47c2a354b01111771326f8aa26e0f21",
		Filename: filepath.Base(wheelPath),
	}

	err := svc.Install(context.Background(), []installer.Download{
		{Request: req, Result: downloader.Result{FilePath: wheelPath}},
	})
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(layout.Purelib, "six-1.16.0.dist-info", "direct_url.json"))
	if err != nil {
		t.Fatalf("reading direct_url.json: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshalling direct_url.json: %v", err)
	}

	if doc["url"] != req.URL {
		t.Errorf("url = %v, want %v", doc["url"], req.URL)
	}
}

// TestInstallThenUninstallRestoresLayout exercises the round-trip property:
// install followed by uninstall leaves the target subtrees as they were
// before, since every artefact install wrote is listed in RECORD and the
// uninstaller deletes exactly that list.
func TestInstallThenUninstallRestoresLayout(t *testing.T) {
	layout := testLayout(t)
	wheelDir := t.TempDir()
	wheelPath := sixWheelFixture(t, wheelDir, map[string]string{
		"six-1.16.0.dist-info/entry_points.txt": "[console_scripts]\nsixcli = six:main\n",
	})

	svc := installer.New(layout, supportedTags())

	downloads := []installer.Download{
		{
			Request: downloader.Request{Name: "six", Version: "1.16.0", Filename: filepath.Base(wheelPath)},
			Result:  downloader.Result{Name: "six", Version: "1.16.0", FilePath: wheelPath},
		},
	}

	if err := svc.Install(context.Background(), downloads); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	distInfoDir := filepath.Join(layout.Purelib, "six-1.16.0.dist-info")

	u := uninstaller.New()

	result, err := u.Uninstall(distInfoDir, layout.Purelib)
	if err != nil {
		t.Fatalf("Uninstall() error: %v", err)
	}

	if result.FilesRemoved == 0 {
		t.Errorf("FilesRemoved = 0, want > 0")
	}

	if _, err := os.Stat(filepath.Join(layout.Purelib, "six.py")); !os.IsNotExist(err) {
		t.Errorf("six.py should be gone after uninstall, stat err = %v", err)
	}

	if _, err := os.Stat(distInfoDir); !os.IsNotExist(err) {
		t.Errorf("dist-info directory should be pruned after uninstall, stat err = %v", err)
	}

	remaining, err := os.ReadDir(layout.Purelib)
	if err != nil {
		t.Fatalf("reading purelib after uninstall: %v", err)
	}

	if len(remaining) != 0 {
		t.Errorf("purelib should be empty after uninstall, found %v", remaining)
	}
}
