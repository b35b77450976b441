package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"coldvault/internal/config"
	"coldvault/internal/logger"
)

var (
	cfgPath string
	cfg     *config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "coldvault",
		Short:         "Archive directories to cold storage and restore them on demand",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(expandHome(cfgPath))
			if err != nil {
				return err
			}
			return logger.Init(cfg.LogPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "~/.coldvault.yaml", "configuration file")

	root.AddCommand(newArchiveCmd())
	root.AddCommand(newRestoreCmd())
	root.AddCommand(newDBCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
