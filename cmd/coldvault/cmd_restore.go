package main

import (
	"context"

	"github.com/spf13/cobra"

	"coldvault/internal/backend"
	"coldvault/internal/logger"
	"coldvault/internal/manifest"
	"coldvault/internal/service"
)

func newRestoreCmd() *cobra.Command {
	var (
		deleteBundle bool
		keep         bool
	)

	cmd := &cobra.Command{
		Use:   "restore [flags] dir",
		Short: "Retrieve, verify, and extract a directory's archived bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := &service.RestoreService{
				Resolve: func(ctx context.Context, m *manifest.Manifest) (backend.TransferBackend, error) {
					return backendForManifest(ctx, cfg, m)
				},
				PollInterval: cfg.Restore.PollInterval,
				Timeout:      cfg.Restore.Timeout,
			}
			m, err := svc.Restore(cmd.Context(), expandHome(args[0]), service.RestoreOptions{
				DeleteBundle: deleteBundle,
				Keep:         keep,
			})
			if err != nil {
				return err
			}
			logger.Infof("archive %s restored", m.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&deleteBundle, "delete", "d", false, "delete the bundle after extraction")
	cmd.Flags().BoolVarP(&keep, "keep", "k", false, "keep a corrupt downloaded bundle for debugging")
	return cmd
}
