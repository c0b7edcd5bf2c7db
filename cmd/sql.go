package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pable/go-rollcorr/internal/report"
	"github.com/pable/go-rollcorr/internal/storage"
)

var sqlSchema bool

var sqlCmd = &cobra.Command{
	Use:   "sql [query]",
	Short: "Query the run history database",
	Long: `Run a SQL statement against the run history and print the result as a table.
Undefined correlations are stored as NULL. Use --schema to list tables and columns.

Example:
  rollcorr sql "SELECT window_size, avg_corr FROM correlations WHERE run_id LIKE '0b7c%' ORDER BY avg_corr DESC LIMIT 5"`,
	RunE: runSQL,
}

func init() {
	sqlCmd.Flags().BoolVar(&sqlSchema, "schema", false, "list tables and their columns")
}

func runSQL(cmd *cobra.Command, args []string) error {
	if !sqlSchema && len(args) == 0 {
		return fmt.Errorf("a query is required unless --schema is set")
	}
	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	w := cmd.OutOrStdout()
	if sqlSchema {
		tables, err := db.Tables()
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintf(w, "%s(%s)\n", t.Name, strings.Join(t.Columns, ", "))
		}
		return nil
	}

	cols, rows, err := db.QueryRaw(strings.Join(args, " "))
	if err != nil {
		return err
	}
	report.PrintQueryResult(w, cols, rows)
	return nil
}
