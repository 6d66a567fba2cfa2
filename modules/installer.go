package modules

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/mholt/archives"

	"github.com/priyxstudio/sgo/metrics"
)

// Manifests larger than this are not something a module would ship.
const maxManifestSize = 1 << 20

// InstallResult is returned to callers after a successful install.
type InstallResult struct {
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Migrations []string `json:"migrations,omitempty"`
}

// Installer extracts module archives into the storage root and registers
// them.
type Installer struct {
	root       string
	tmpDir     string
	registry   *Registry
	migrations *MigrationRunner
	downloader Downloader
	locks      *slugLocker
}

// NewInstaller returns an installer writing modules below root. Archives
// fetched for link installs are staged in tmpDir. downloader may be nil when
// link installs are not needed.
func NewInstaller(root, tmpDir string, registry *Registry, migrations *MigrationRunner, downloader Downloader) *Installer {
	return &Installer{
		root:       root,
		tmpDir:     tmpDir,
		registry:   registry,
		migrations: migrations,
		downloader: downloader,
		locks:      newSlugLocker(),
	}
}

// Root returns the storage root modules are extracted into.
func (i *Installer) Root() string {
	return i.root
}

// TempFile creates an empty file in the staging directory. The caller owns
// the file and must remove it.
func (i *Installer) TempFile(pattern string) (*os.File, error) {
	if err := os.MkdirAll(i.tmpDir, 0o700); err != nil {
		return nil, errors.WithStack(err)
	}
	f, err := os.CreateTemp(i.tmpDir, pattern)
	return f, errors.WithStack(err)
}

// InstallFromURL downloads the archive at url, forwarding authToken as a
// bearer token when set, and installs it. The downloaded file is always
// removed.
func (i *Installer) InstallFromURL(ctx context.Context, url string, authToken string) (*InstallResult, error) {
	if i.downloader == nil {
		return nil, errors.New("modules: link installs are not configured")
	}
	if err := os.MkdirAll(i.tmpDir, 0o700); err != nil {
		return nil, errors.WithStack(err)
	}
	p := filepath.Join(i.tmpDir, "link-"+uuid.NewString()+".archive")
	defer os.Remove(p)

	n, err := i.downloader.DownloadFile(ctx, url, authToken, p)
	if err != nil {
		metrics.ModuleInstalls.WithLabelValues("link", "download_failed").Inc()
		return nil, err
	}
	log.WithFields(log.Fields{"url": url, "bytes": n}).Debug("downloaded module archive")
	return i.install(ctx, p, "link")
}

// InstallFromFile installs the archive stored at p. The file is left in
// place; cleaning it up is the caller's job.
func (i *Installer) InstallFromFile(ctx context.Context, p string) (*InstallResult, error) {
	return i.install(ctx, p, "file")
}

func (i *Installer) install(ctx context.Context, p string, source string) (*InstallResult, error) {
	res, err := i.installArchive(ctx, p)
	outcome := "success"
	switch {
	case err == nil:
	case IsMigrationError(err):
		outcome = "migration_failed"
	case IsClientError(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	metrics.ModuleInstalls.WithLabelValues(source, outcome).Inc()
	return res, err
}

func (i *Installer) installArchive(ctx context.Context, p string) (*InstallResult, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, filepath.Base(p), f)
	if err != nil {
		return nil, errors.WrapIf(ErrInvalidArchive, "modules: unrecognised archive format")
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return nil, errors.WrapIf(ErrInvalidArchive, "modules: archive format cannot be extracted")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	scan, err := scanArchive(ctx, ex, f)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(scan.manifest)
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{"module": m.Slug, "version": m.Version})
	release, err := i.locks.Acquire(ctx, m.Slug)
	if err != nil {
		return nil, err
	}
	defer release()

	dir := filepath.Join(i.root, m.Slug)
	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrap(err, "modules: failed to remove previous module version")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "modules: failed to create module directory")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := extractArchive(ctx, ex, f, scan.prefix, dir); err != nil {
		return nil, err
	}
	logger.WithField("path", dir).Debug("extracted module archive")

	if _, err := i.registry.SaveInstalled(ctx, m, dir); err != nil {
		return nil, err
	}

	applied, err := i.migrations.ApplyPending(ctx, m.Slug, dir)
	if err != nil {
		logger.WithField("error", err).Error("module migrations failed")
		return nil, err
	}

	logger.WithField("migrations", len(applied)).Info("installed module")
	return &InstallResult{Slug: m.Slug, Name: m.Name, Version: m.Version, Migrations: applied}, nil
}

// SweepTemp removes staged archives older than maxAge.
func (i *Installer) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(i.tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.WithStack(err)
	}
	cutoff := time.Now().Add(-maxAge)
	var removed int
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.tmpDir, e.Name())); err != nil {
			log.WithField("path", e.Name()).WithField("error", err).Warn("failed to remove stale upload")
			continue
		}
		removed++
	}
	return removed, nil
}

type archiveScan struct {
	manifest []byte
	// prefix is the directory holding the manifest, "" when it sits at the
	// root of the archive. It becomes the module root on extraction.
	prefix string
}

// scanArchive validates every entry name and reads the shallowest
// manifest.json at the root or one directory deep without touching the
// filesystem.
func scanArchive(ctx context.Context, ex archives.Extractor, r io.Reader) (*archiveScan, error) {
	var found *archiveScan
	depth := -1
	err := ex.Extract(ctx, r, func(ctx context.Context, fi archives.FileInfo) error {
		name, err := entryName(fi.NameInArchive)
		if err != nil {
			return err
		}
		if fi.IsDir() || path.Base(name) != ManifestName {
			return nil
		}
		d := strings.Count(name, "/")
		if d > 1 || (found != nil && d >= depth) {
			return nil
		}
		b, err := readEntry(fi)
		if err != nil {
			return err
		}
		prefix := path.Dir(name)
		if prefix == "." {
			prefix = ""
		}
		found, depth = &archiveScan{manifest: b, prefix: prefix}, d
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidArchive) {
			return nil, err
		}
		return nil, errors.WrapIff(ErrInvalidArchive, "modules: %s", err)
	}
	if found == nil {
		return nil, ErrMissingManifest
	}
	return found, nil
}

func extractArchive(ctx context.Context, ex archives.Extractor, r io.Reader, prefix string, dir string) error {
	return ex.Extract(ctx, r, func(ctx context.Context, fi archives.FileInfo) error {
		name, err := entryName(fi.NameInArchive)
		if err != nil {
			return err
		}
		if prefix != "" {
			if !strings.HasPrefix(name, prefix+"/") {
				log.WithField("entry", name).Debug("skipping archive entry outside of module root")
				return nil
			}
			name = strings.TrimPrefix(name, prefix+"/")
		}
		if name == "" || name == "." {
			return nil
		}

		target := filepath.Join(dir, filepath.FromSlash(name))
		if !within(dir, target) {
			return errors.WrapIff(ErrInvalidArchive, "modules: entry %s escapes the module directory", name)
		}
		if fi.IsDir() {
			return errors.WithStack(os.MkdirAll(target, 0o755))
		}
		if fi.LinkTarget != "" || fi.Mode()&fs.ModeSymlink != 0 || !fi.Mode().IsRegular() {
			log.WithField("entry", name).Debug("skipping non-regular archive entry")
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.WithStack(err)
		}
		return writeEntry(fi, target)
	})
}

func writeEntry(fi archives.FileInfo, target string) error {
	src, err := fi.Open()
	if err != nil {
		return errors.WrapIff(ErrInvalidArchive, "modules: cannot open %s: %s", fi.NameInArchive, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.WrapIff(ErrInvalidArchive, "modules: cannot extract %s: %s", fi.NameInArchive, err)
	}
	return errors.WithStack(dst.Close())
}

func readEntry(fi archives.FileInfo) ([]byte, error) {
	rc, err := fi.Open()
	if err != nil {
		return nil, errors.WrapIff(ErrInvalidArchive, "modules: cannot open %s: %s", fi.NameInArchive, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxManifestSize+1))
	if err != nil {
		return nil, errors.WrapIff(ErrInvalidArchive, "modules: cannot read %s: %s", fi.NameInArchive, err)
	}
	if len(b) > maxManifestSize {
		return nil, errors.WrapIf(ErrInvalidArchive, "modules: manifest.json is too large")
	}
	return b, nil
}

// entryName normalises an archive entry name to a clean, relative, slash
// separated path and rejects names that would escape the extraction root.
func entryName(n string) (string, error) {
	n = strings.ReplaceAll(n, "\\", "/")
	n = path.Clean(strings.TrimPrefix(n, "./"))
	if path.IsAbs(n) || n == ".." || strings.HasPrefix(n, "../") || strings.Contains(n, ":") {
		return "", errors.WrapIff(ErrInvalidArchive, "modules: illegal entry name %q", n)
	}
	return n, nil
}

func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
