package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-rollcorr/internal/report"
	"github.com/pable/go-rollcorr/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <run-prefix>",
	Short: "Show a recorded run's correlation table by id prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	prefix := args[0]

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	run, err := db.GetRunByPrefix(prefix)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	if run == nil {
		fmt.Fprintf(os.Stderr, "No run found with id prefix %q\n", prefix)
		return nil
	}

	rows, err := db.GetCorrelations(run.ID)
	if err != nil {
		return fmt.Errorf("get correlations: %w", err)
	}

	report.PrintRunSummary(os.Stdout, *run)
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "Run has no correlation table (it did not finish).")
		return nil
	}
	report.PrintCorrelationTable(os.Stdout, rows)
	report.PrintPeaks(os.Stdout, rows)
	return nil
}
