package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"coldvault/internal/backend"
	"coldvault/internal/config"
	"coldvault/internal/index"
	"coldvault/internal/logger"
	"coldvault/internal/manifest"
	"coldvault/internal/service"
)

func newArchiveCmd() *cobra.Command {
	var (
		useGlacier bool
		useRemote  bool
		dryRun     bool
		force      bool
		overwrite  bool
		keep       bool
		tarball    bool

		bucket       string
		region       string
		storageClass string
		endpoint     string
		archivePath  string
		database     string
	)

	cmd := &cobra.Command{
		Use:   "archive [flags] path...",
		Short: "Bundle paths and move them to a cold-storage backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if useGlacier == useRemote && !dryRun {
				return fmt.Errorf("choose exactly one destination: --glacier or --remote-archive")
			}
			applyOverride(&cfg.S3.Bucket, bucket)
			applyOverride(&cfg.S3.Region, region)
			applyOverride(&cfg.Globus.Endpoint, endpoint)
			applyOverride(&cfg.Globus.ArchivePath, archivePath)
			applyOverride(&cfg.Database, database)
			if storageClass != "" {
				if !config.ValidStorageClass(storageClass) {
					return fmt.Errorf("unsupported storage class %q", storageClass)
				}
				cfg.S3.StorageClass = storageClass
			}

			ctx := cmd.Context()
			svc := &service.ArchiveService{Owner: cfg.Owner}
			if !dryRun {
				var err error
				if svc.Backend, err = buildBackend(ctx, cfg, useGlacier); err != nil {
					return err
				}
				if cfg.Database != "" {
					db, err := index.Open(cfg.Database)
					if err != nil {
						return err
					}
					svc.Repo = index.NewArchiveRepository(db)
				}
			}

			opts := service.ArchiveOptions{
				DryRun:    dryRun,
				Force:     force,
				Overwrite: overwrite,
				Keep:      keep,
			}
			for _, path := range args {
				var (
					m   *manifest.Manifest
					err error
				)
				if tarball {
					m, err = svc.ArchiveTarball(ctx, expandHome(path), opts)
				} else {
					m, err = svc.Archive(ctx, expandHome(path), opts)
				}
				if err != nil {
					return err
				}
				logger.Infof("archived %s as %s (%s)", m.LocalPath, m.ID, m.Location)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&useGlacier, "glacier", "G", false, "archive to the S3 cold-storage bucket")
	cmd.Flags().BoolVarP(&useRemote, "remote-archive", "R", false, "archive to the managed remote archive")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "bundle and verify without uploading")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "archive even if a manifest already exists")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "o", false, "replace the existing archive, reusing its id")
	cmd.Flags().BoolVarP(&keep, "keep", "k", false, "keep source files and local bundle after archiving")
	cmd.Flags().BoolVarP(&tarball, "tarball", "t", false, "path arguments are already-built bundles")
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "S3 bucket override")
	cmd.Flags().StringVarP(&region, "region", "r", "", "S3 region override")
	cmd.Flags().StringVarP(&storageClass, "storage-class", "s", "", "S3 storage class override")
	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "transfer agent endpoint override")
	cmd.Flags().StringVarP(&archivePath, "archive-path", "a", "", "remote archive path override")
	cmd.Flags().StringVarP(&database, "database", "d", "", "index database override")
	return cmd
}

func applyOverride(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func buildBackend(ctx context.Context, cfg *config.Config, useGlacier bool) (backend.TransferBackend, error) {
	if useGlacier {
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("no S3 bucket configured")
		}
		return backend.NewColdStorage(ctx, cfg.S3, cfg.Restore)
	}
	if cfg.Globus.Endpoint == "" || cfg.Globus.ArchivePath == "" {
		return nil, fmt.Errorf("no transfer agent endpoint/path configured")
	}
	remote := backend.NewRemoteArchive(cfg.Globus.Endpoint, cfg.Globus.ArchivePath)
	if err := remote.Ping(ctx); err != nil {
		return nil, err
	}
	return remote, nil
}

// backendForManifest builds the restore-side backend. The manifest's
// recorded archive path names where the bundle actually lives, which
// may differ from the current config; the config only fills gaps.
func backendForManifest(ctx context.Context, cfg *config.Config, m *manifest.Manifest) (backend.TransferBackend, error) {
	switch m.Location {
	case manifest.LocationS3:
		s3cfg := cfg.S3
		if m.ArchivePath != "" {
			s3cfg.Bucket = m.ArchivePath
		}
		if s3cfg.Bucket == "" {
			return nil, fmt.Errorf("no S3 bucket configured")
		}
		return backend.NewColdStorage(ctx, s3cfg, cfg.Restore)
	case manifest.LocationGlobus:
		archivePath := cfg.Globus.ArchivePath
		if m.ArchivePath != "" {
			archivePath = m.ArchivePath
		}
		return backend.NewRemoteArchive(cfg.Globus.Endpoint, archivePath), nil
	default:
		return nil, fmt.Errorf("unknown archive location %q", m.Location)
	}
}
