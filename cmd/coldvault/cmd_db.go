package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coldvault/internal/index"
)

func newDBCmd() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Query the archive index",
	}
	cmd.PersistentFlags().StringVarP(&database, "database", "d", "", "index database override")

	openRepo := func() (*index.ArchiveRepository, error) {
		loc := cfg.Database
		if database != "" {
			loc = database
		}
		if loc == "" {
			return nil, fmt.Errorf("no index database configured")
		}
		db, err := index.Open(loc)
		if err != nil {
			return nil, err
		}
		return index.NewArchiveRepository(db), nil
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print every index row as TSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			rows, err := repo.All()
			if err != nil {
				return err
			}
			return printRows(rows)
		},
	}

	search := &cobra.Command{
		Use:   "search substring",
		Short: "Find archives containing a file path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo()
			if err != nil {
				return err
			}
			rows, err := repo.SearchFile(args[0])
			if err != nil {
				return err
			}
			return printRows(rows)
		},
	}

	cmd.AddCommand(dump, search)
	return cmd
}

func printRows(rows []index.ArchiveRecord) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "id\ttimestamp\tlocation\tfilename\tlocalPath\tarchivePath\tfile\tsize\tfingerprint\tbundleFingerprint\towner")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ArchiveID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Location,
			r.Filename, r.LocalPath, r.ArchivePath,
			r.File, r.Size, r.Fingerprint, r.BundleFingerprint, r.Owner)
	}
	return w.Flush()
}
