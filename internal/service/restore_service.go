package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"coldvault/internal/archive"
	"coldvault/internal/backend"
	"coldvault/internal/logger"
	"coldvault/internal/manifest"
	"coldvault/internal/restore"
)

type RestoreOptions struct {
	// DeleteBundle removes the downloaded bundle after extraction.
	DeleteBundle bool

	// Keep preserves a corrupt downloaded bundle for debugging.
	Keep bool
}

type RestoreService struct {
	// Resolve builds the backend that can serve the loaded manifest.
	// The manifest is passed whole so resolution can honor the archive
	// path recorded at upload time rather than the current config.
	Resolve func(ctx context.Context, m *manifest.Manifest) (backend.TransferBackend, error)

	PollInterval time.Duration
	Timeout      time.Duration
}

// Restore loads the directory's most recent manifest and drives its
// bundle back to extracted files. The whole operation runs under one
// deadline so a stuck staging wait cannot orphan the process.
func (s *RestoreService) Restore(ctx context.Context, dir string, opts RestoreOptions) (*manifest.Manifest, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", archive.ErrInvalidInputPath, dir)
	}

	store := &manifest.Store{Dir: dir}
	m, err := store.Load()
	if err != nil {
		return nil, err
	}
	if m.Location == manifest.LocationDryRun {
		return nil, fmt.Errorf("manifest %s records a dry run; there is no remote bundle", m.ID)
	}

	b, err := s.Resolve(ctx, m)
	if err != nil {
		return nil, err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	orch := restore.New(b, restore.Options{
		PollInterval:  s.PollInterval,
		DeleteBundle:  opts.DeleteBundle,
		KeepArtifacts: opts.Keep,
	})
	if err := orch.Run(ctx, m, dir); err != nil {
		return nil, err
	}
	logger.Infof("%s restored to %s", m.Filename, dir)
	return m, nil
}
