package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"coldvault/internal/manifest"
)

var (
	// ErrInvalidInputPath is returned when the archive target is
	// neither a regular file nor a directory.
	ErrInvalidInputPath = errors.New("path is not a file or directory")

	// ErrEmptyFileSet is returned when a directory walk yields no
	// eligible files.
	ErrEmptyFileSet = errors.New("no eligible files found")
)

// DefaultFingerprintWorkers bounds the fingerprint pool. Hashing is
// per-file independent, so workers run unordered; results are slotted
// back into traversal order before being handed downstream.
const DefaultFingerprintWorkers = 4

// Enumerate walks path and returns the directory the relative paths
// are anchored at plus one FileEntry per eligible file, in stable
// traversal order. Hidden entries and our own bundle/sidecar
// artifacts are skipped so re-running inside an archived directory
// never ingests prior output.
func Enumerate(ctx context.Context, path string, workers int) (string, []manifest.FileEntry, error) {
	if workers <= 0 {
		workers = DefaultFingerprintWorkers
	}

	info, err := os.Stat(path)
	if err != nil || (!info.Mode().IsRegular() && !info.IsDir()) {
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidInputPath, path)
	}

	var root string
	var relPaths []string
	if info.Mode().IsRegular() {
		root = filepath.Dir(path)
		relPaths = []string{filepath.Base(path)}
	} else {
		root = path
		relPaths, err = walk(path)
		if err != nil {
			return "", nil, err
		}
		if len(relPaths) == 0 {
			return "", nil, fmt.Errorf("%w in %s", ErrEmptyFileSet, path)
		}
	}

	entries := make([]manifest.FileEntry, len(relPaths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range relPaths {
		i, rel := i, rel
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			full := filepath.Join(root, rel)
			fi, err := os.Stat(full)
			if err != nil {
				return fmt.Errorf("stat %s: %w", full, err)
			}
			sum, err := Fingerprint(full)
			if err != nil {
				return err
			}
			entries[i] = manifest.FileEntry{Path: rel, Size: fi.Size(), Fingerprint: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	return root, entries, nil
}

// walk collects relative paths of eligible regular files under dir.
// WalkDir visits entries in lexical order, which gives the stable
// ordering bundle construction depends on.
func walk(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if p != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if manifest.IsArtifactName(name) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return out, nil
}

// TotalSize sums the byte sizes of entries.
func TotalSize(entries []manifest.FileEntry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Size
	}
	return n
}
