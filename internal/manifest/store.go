package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrDuplicateArchive is returned by Create when a sidecar already
	// exists in the target directory and neither force nor overwrite
	// was requested.
	ErrDuplicateArchive = errors.New("archive already exists")

	// ErrNoManifest is returned by Load when a directory holds no
	// sidecar.
	ErrNoManifest = errors.New("no manifest found")
)

// Store persists manifests as JSON sidecars co-located with the
// archived content. The store never deletes a sidecar; superseded
// manifests are overwritten in place only through an explicit
// overwrite operation.
type Store struct {
	Dir string
}

// Sidecars lists the sidecar files in the store directory, oldest
// first by modification time.
func (s *Store) Sidecars() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, Prefix+".*.json"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, erri := os.Stat(matches[i])
		fj, errj := os.Stat(matches[j])
		if erri != nil || errj != nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().Before(fj.ModTime())
	})
	return matches, nil
}

// Create decides the identity of a new archive operation. Without
// force or overwrite it refuses when any sidecar is already present.
// With overwrite it reuses the id embedded in the most recent existing
// sidecar, so overwrite is update-in-place rather than a fresh
// identity. With force it mints a new id alongside the old artifacts.
func (s *Store) Create(force, overwrite bool) (id string, reused bool, err error) {
	existing, err := s.Sidecars()
	if err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		if overwrite {
			prev := filepath.Base(existing[len(existing)-1])
			prevID, ok := IDFromArtifactName(prev)
			if !ok {
				return "", false, fmt.Errorf("cannot extract id from sidecar %q", prev)
			}
			return prevID, true, nil
		}
		if !force {
			return "", false, fmt.Errorf("%w in %s", ErrDuplicateArchive, s.Dir)
		}
	}
	return NewID(), false, nil
}

// Persist writes m as a sidecar in the store directory.
func (s *Store) Persist(m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(s.Dir, SidecarName(m.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// Load reads the manifest for the directory. When repeated force
// archiving left multiple sidecars behind, the most recently written
// one wins; earlier sidecars stay on disk but are not consulted.
func (s *Store) Load() (*Manifest, error) {
	existing, err := s.Sidecars()
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoManifest, s.Dir)
	}
	path := existing[len(existing)-1]
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
