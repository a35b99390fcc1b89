package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/snapshot"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture schemas to files and compare them offline",
		Long: `Snapshots are YAML or JSON files holding the tables of one database. They can
be checked into version control and compared without a live connection.`,
	}

	cmd.AddCommand(newSnapshotExportCmd())
	cmd.AddCommand(newSnapshotDiffCmd())

	return cmd
}

// ---------- snapshot export ----------

func newSnapshotExportCmd() *cobra.Command {
	var (
		out      string
		database string
	)

	cmd := &cobra.Command{
		Use:   "export <connection>",
		Short: "Write the schema behind a connection to a snapshot file",
		Example: `  structsync snapshot export prod --out schema/prod.yaml
  structsync snapshot export prod --database audit --out audit.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.svc.Snapshot(cmd.Context(), args[0], database)
			if err != nil {
				return err
			}
			if err := snapshot.Write(out, snap); err != nil {
				return err
			}
			fmt.Printf("Captured %d table(s) from %q (%s) to %s\n", len(snap.Tables), args[0], snap.Driver, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Snapshot file; .json selects JSON, anything else YAML")
	cmd.Flags().StringVar(&database, "database", "", "Database to capture (default: the profile's database)")
	cmd.MarkFlagRequired("out")

	return cmd
}

// ---------- snapshot diff ----------

func newSnapshotDiffCmd() *cobra.Command {
	var (
		dialect    string
		jsonOutput bool
		out        string
	)

	cmd := &cobra.Command{
		Use:   "diff <source-file> <target-file>",
		Short: "Compare two snapshot files",
		Long: `Compare two snapshot files without connecting to any database. The SQL is
written in the target snapshot's dialect unless --dialect is given.`,
		Example: `  structsync snapshot diff dev.yaml prod.yaml
  structsync snapshot diff dev.yaml prod.yaml --dialect mssql --out sync.sql`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := snapshot.Read(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			target, err := snapshot.Read(args[1])
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}

			driver := ""
			if dialect != "" {
				t, err := model.ParseDbType(dialect)
				if err != nil {
					return err
				}
				driver = t.Driver()
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.svc.CompareSnapshots(source, target, driver)
			if err != nil {
				return err
			}
			return writeResult(a, result, jsonOutput, out)
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", "", "SQL dialect: mysql, mariadb, postgresql or mssql")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the SQL script to a file")

	return cmd
}
