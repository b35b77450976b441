package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"coldvault/internal/manifest"
)

// SizeLimit caps the aggregate source size of one bundle at 2 TB.
const SizeLimit = 2_000_000_000_000

// ErrSizeLimitExceeded is returned before any bundle bytes are
// written, so a rejected request leaves nothing on disk.
var ErrSizeLimitExceeded = errors.New("total file size exceeds 2TB limit")

// BuildBundle streams the enumerated files into a single gzipped tar
// at bundlePath, preserving each entry's relative path as its member
// name. Files are copied in chunks; nothing is held in memory whole.
func BuildBundle(root string, entries []manifest.FileEntry, bundlePath string) error {
	if TotalSize(entries) > SizeLimit {
		return fmt.Errorf("%w: %s", ErrSizeLimitExceeded, root)
	}

	out, err := os.Create(bundlePath)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	for _, e := range entries {
		if err := addMember(tw, root, e.Path); err != nil {
			tw.Close()
			gw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finalize gzip: %w", err)
	}
	return nil
}

func addMember(tw *tar.Writer, root, rel string) error {
	full := filepath.Join(root, rel)
	f, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("open %s: %w", full, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", full, err)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("header %s: %w", rel, err)
	}
	hdr.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", rel, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("write member %s: %w", rel, err)
	}
	return nil
}
