package manifest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix is the artifact naming prefix. Bundles are named
// "coldvault.<id>.tar.gz" and sidecars "coldvault.<id>.json"; both are
// skipped by enumeration so re-archiving a directory never ingests its
// own artifacts.
const (
	Prefix    = "coldvault"
	BundleExt = "tar.gz"
)

// Location kinds recorded in a manifest.
const (
	LocationS3     = "s3"
	LocationGlobus = "globus"
	LocationDryRun = "dry-run"
)

var artifactRe = regexp.MustCompile(`^` + Prefix + `\.(\S+)\.(tar\.gz|json)$`)

// FileEntry is one archived file. Identity is (Path, Fingerprint);
// entries are never mutated after enumeration.
type FileEntry struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Fingerprint string `json:"fingerprint"`
}

// Manifest is the durable record of one archive operation. It is
// written once per operation and only ever superseded by an overwrite
// that reuses the same ID.
type Manifest struct {
	ID                string      `json:"id"`
	Timestamp         time.Time   `json:"timestamp"`
	Location          string      `json:"location"`
	Filename          string      `json:"filename"`
	LocalPath         string      `json:"localPath"`
	ArchivePath       string      `json:"archivePath"`
	Files             []FileEntry `json:"files"`
	BundleFingerprint string      `json:"bundleFingerprint"`
	Owner             string      `json:"owner"`
}

// NewID mints an archive identity. Opaque, generated once, immutable
// for the manifest's lifetime.
func NewID() string { return uuid.NewString() }

func BundleName(id string) string  { return fmt.Sprintf("%s.%s.%s", Prefix, id, BundleExt) }
func SidecarName(id string) string { return fmt.Sprintf("%s.%s.json", Prefix, id) }

// IsArtifactName reports whether name is one of our own bundle or
// sidecar files.
func IsArtifactName(name string) bool { return artifactRe.MatchString(name) }

// IDFromArtifactName extracts the archive id embedded in a bundle or
// sidecar filename.
func IDFromArtifactName(name string) (string, bool) {
	m := artifactRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Validate checks a loaded manifest for the fields every downstream
// consumer depends on. Called once at load time so the rest of the
// code can assume a well-formed value.
func (m *Manifest) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("manifest: missing id")
	case m.Filename == "":
		return fmt.Errorf("manifest %s: missing filename", m.ID)
	case m.Location == "":
		return fmt.Errorf("manifest %s: missing location", m.ID)
	case m.BundleFingerprint == "":
		return fmt.Errorf("manifest %s: missing bundle fingerprint", m.ID)
	}
	if m.Location != LocationS3 && m.Location != LocationGlobus && m.Location != LocationDryRun {
		return fmt.Errorf("manifest %s: unknown location %q", m.ID, m.Location)
	}
	for _, f := range m.Files {
		if f.Path == "" || f.Fingerprint == "" {
			return fmt.Errorf("manifest %s: incomplete file entry %q", m.ID, f.Path)
		}
		if strings.HasPrefix(f.Path, "/") {
			return fmt.Errorf("manifest %s: absolute file path %q", m.ID, f.Path)
		}
	}
	return nil
}
