// Package service wires the archive pipeline: enumerate, bundle,
// verify, transfer, persist. Components are injected so commands and
// tests choose the backend and index.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coldvault/internal/archive"
	"coldvault/internal/backend"
	"coldvault/internal/index"
	"coldvault/internal/logger"
	"coldvault/internal/manifest"
)

type ArchiveOptions struct {
	// DryRun stops after verification and sidecar write; nothing is
	// uploaded or indexed.
	DryRun bool

	// Force archives even when a sidecar already exists, under a new
	// identity.
	Force bool

	// Overwrite reuses the existing archive's identity and replaces
	// the remote object.
	Overwrite bool

	// Keep leaves the source files and the local bundle in place
	// after a successful upload, and preserves a corrupt bundle for
	// debugging instead of deleting it.
	Keep bool
}

type ArchiveService struct {
	Backend backend.TransferBackend
	Repo    *index.ArchiveRepository // nil disables the index mirror
	Owner   string
	Workers int
}

// Archive packages target (a file or a directory) into a verified
// bundle, ships it to the backend, and persists the manifest sidecar
// plus its index rows.
func (s *ArchiveService) Archive(ctx context.Context, target string, opts ArchiveOptions) (*manifest.Manifest, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || (!info.Mode().IsRegular() && !info.IsDir()) {
		return nil, fmt.Errorf("%w: %s", archive.ErrInvalidInputPath, target)
	}
	dir := abs
	if info.Mode().IsRegular() {
		dir = filepath.Dir(abs)
	}

	store := &manifest.Store{Dir: dir}
	id, reused, err := store.Create(opts.Force, opts.Overwrite)
	if err != nil {
		return nil, err
	}
	if reused {
		logger.Infof("overwriting archive %s", id)
	}

	root, entries, err := archive.Enumerate(ctx, abs, s.Workers)
	if err != nil {
		return nil, err
	}
	logger.Infof("archiving %d files (%d bytes) from %s", len(entries), archive.TotalSize(entries), abs)

	bundlePath := filepath.Join(dir, manifest.BundleName(id))
	if err := archive.BuildBundle(root, entries, bundlePath); err != nil {
		return nil, err
	}
	if err := archive.VerifyBuild(bundlePath, entries); err != nil {
		if !opts.Keep {
			os.Remove(bundlePath)
		}
		return nil, err
	}
	bundleSum, err := archive.Fingerprint(bundlePath)
	if err != nil {
		return nil, err
	}

	m := &manifest.Manifest{
		ID:                id,
		Timestamp:         time.Now(),
		Filename:          manifest.BundleName(id),
		LocalPath:         abs,
		Files:             entries,
		BundleFingerprint: bundleSum,
		Owner:             s.Owner,
	}

	if opts.DryRun {
		m.Location = manifest.LocationDryRun
		m.ArchivePath = "(dry run)"
		if err := store.Persist(m); err != nil {
			return nil, err
		}
		logger.Infof("dry run complete for %s; bundle left at %s", abs, bundlePath)
		return m, nil
	}

	m.Location = s.Backend.Kind()
	archivePath, err := s.Backend.Upload(ctx, bundlePath, opts.Overwrite, uploadProgress(m.Filename))
	if err != nil {
		return nil, err
	}
	m.ArchivePath = archivePath

	if !opts.Keep {
		if err := os.Remove(bundlePath); err != nil {
			logger.Warnf("cannot remove local bundle %s: %v", bundlePath, err)
		}
		if err := removeSources(root, entries); err != nil {
			return nil, err
		}
	}

	if err := store.Persist(m); err != nil {
		return nil, err
	}
	if s.Repo != nil {
		if err := s.Repo.Insert(m); err != nil {
			return nil, fmt.Errorf("index manifest %s: %w", m.ID, err)
		}
	}
	return m, nil
}

// ArchiveTarball ships an already-built bundle. The archive id comes
// from the bundle's filename and the file list is read from its
// members, so no filesystem enumeration or bundle build happens; the
// sources the bundle was built from are never touched.
func (s *ArchiveService) ArchiveTarball(ctx context.Context, target string, opts ArchiveOptions) (*manifest.Manifest, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", archive.ErrInvalidInputPath, target)
	}
	name := filepath.Base(abs)
	id, ok := manifest.IDFromArtifactName(name)
	if !ok || name != manifest.BundleName(id) {
		return nil, fmt.Errorf("%w: %s is not a %s bundle", archive.ErrInvalidInputPath, target, manifest.Prefix)
	}

	entries, err := archive.ReadBundleEntries(abs)
	if err != nil {
		return nil, err
	}
	bundleSum, err := archive.Fingerprint(abs)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	logger.Infof("archiving bundle %s (%d members, %d bytes)", abs, len(entries), info.Size())

	m := &manifest.Manifest{
		ID:                id,
		Timestamp:         time.Now(),
		Filename:          name,
		LocalPath:         dir,
		Files:             entries,
		BundleFingerprint: bundleSum,
		Owner:             s.Owner,
	}
	store := &manifest.Store{Dir: dir}

	if opts.DryRun {
		m.Location = manifest.LocationDryRun
		m.ArchivePath = "(dry run)"
		if err := store.Persist(m); err != nil {
			return nil, err
		}
		logger.Infof("dry run complete for bundle %s", abs)
		return m, nil
	}

	m.Location = s.Backend.Kind()
	archivePath, err := s.Backend.Upload(ctx, abs, opts.Overwrite, uploadProgress(name))
	if err != nil {
		return nil, err
	}
	m.ArchivePath = archivePath

	if !opts.Keep {
		if err := os.Remove(abs); err != nil {
			logger.Warnf("cannot remove local bundle %s: %v", abs, err)
		}
	}
	if err := store.Persist(m); err != nil {
		return nil, err
	}
	if s.Repo != nil {
		if err := s.Repo.Insert(m); err != nil {
			return nil, fmt.Errorf("index manifest %s: %w", m.ID, err)
		}
	}
	return m, nil
}

// uploadProgress logs transfer progress at coarse intervals; the
// byte-level callback arrives from inside the backend's own
// concurrency.
func uploadProgress(name string) backend.ProgressFunc {
	const step = 256 * 1024 * 1024
	var last int64
	return func(transferred int64) {
		if transferred-last >= step {
			last = transferred
			logger.Infof("uploading %s: %d bytes sent", name, transferred)
		}
	}
}

// removeSources deletes the archived files and prunes directories the
// deletions emptied, leaving hidden entries and our artifacts alone.
func removeSources(root string, entries []manifest.FileEntry) error {
	for _, e := range entries {
		full := filepath.Join(root, e.Path)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", full, err)
		}
	}
	return pruneEmptyDirs(root)
}

func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || p == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	if err != nil {
		return err
	}
	// Deepest first so parents empty out as children go.
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
	return nil
}
