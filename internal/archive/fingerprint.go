// Package archive implements the local half of the pipeline:
// enumerating and fingerprinting source files, building the
// compressed bundle, verifying it, and extracting it again on
// restore.
package archive

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fingerprintChunkSize is the read size for streamed digests.
const fingerprintChunkSize = 256 * 1024

// Fingerprint computes the content fingerprint of the file at path.
// Large files are memory-mapped where the platform allows it; the
// streamed path is the fallback.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > 0 {
		if sum, err := mappedDigest(f, info.Size()); err == nil {
			return sum, nil
		}
		// mmap can fail on exotic filesystems; fall through and stream.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
	}
	return FingerprintReader(f)
}

// FingerprintReader digests r in fixed-size chunks. Used for bundle
// members, which are only reachable as streams.
func FingerprintReader(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, fingerprintChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
