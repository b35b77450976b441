package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"coldvault/internal/manifest"
)

// Phase names the point in the pipeline where an integrity check ran.
type Phase string

const (
	PhaseBuild    Phase = "build"
	PhaseTransfer Phase = "transfer"
	PhaseRestore  Phase = "restore"
)

// IntegrityError reports a fingerprint reconciliation failure. The
// phase tells callers whether the bundle was bad before it ever left
// disk or was corrupted in flight.
type IntegrityError struct {
	Phase  Phase
	Bundle string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch (%s) in %s: %s", e.Phase, e.Bundle, e.Detail)
}

// ReadBundleEntries re-reads every regular member of a bundle and
// recomputes its fingerprint. This is the primitive both verification
// checks are built on.
func ReadBundleEntries(bundlePath string) ([]manifest.FileEntry, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()

	var out []manifest.FileEntry
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", bundlePath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		sum, err := FingerprintReader(tr)
		if err != nil {
			return nil, fmt.Errorf("fingerprint member %s: %w", hdr.Name, err)
		}
		out = append(out, manifest.FileEntry{Path: hdr.Name, Size: hdr.Size, Fingerprint: sum})
	}
	return out, nil
}

// VerifyBuild reconciles the fingerprints recomputed from a just-built
// bundle against the fingerprints recorded during enumeration. The
// comparison is over fingerprint sets, matching the established
// sidecar semantics; see the path-keyed discussion in DESIGN.md.
func VerifyBuild(bundlePath string, want []manifest.FileEntry) error {
	got, err := ReadBundleEntries(bundlePath)
	if err != nil {
		return err
	}
	wantSet := make(map[string]bool, len(want))
	for _, e := range want {
		wantSet[e.Fingerprint] = true
	}
	gotSet := make(map[string]bool, len(got))
	for _, e := range got {
		gotSet[e.Fingerprint] = true
	}
	if len(wantSet) != len(gotSet) {
		return &IntegrityError{
			Phase:  PhaseBuild,
			Bundle: bundlePath,
			Detail: fmt.Sprintf("expected %d distinct fingerprints, bundle has %d", len(wantSet), len(gotSet)),
		}
	}
	for sum := range wantSet {
		if !gotSet[sum] {
			return &IntegrityError{
				Phase:  PhaseBuild,
				Bundle: bundlePath,
				Detail: fmt.Sprintf("fingerprint %s missing from bundle", sum),
			}
		}
	}
	return nil
}

// VerifyBundleFingerprint recomputes the whole-bundle fingerprint and
// compares it against the recorded one. Run after every transfer leg,
// independent of what the transport claims.
func VerifyBundleFingerprint(bundlePath, want string, phase Phase) error {
	got, err := Fingerprint(bundlePath)
	if err != nil {
		return err
	}
	if got != want {
		return &IntegrityError{
			Phase:  phase,
			Bundle: bundlePath,
			Detail: fmt.Sprintf("bundle fingerprint %s, manifest records %s", got, want),
		}
	}
	return nil
}
