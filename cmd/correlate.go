package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-rollcorr/internal/correlate"
	"github.com/pable/go-rollcorr/internal/dataset"
	"github.com/pable/go-rollcorr/internal/model"
	"github.com/pable/go-rollcorr/internal/report"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Rebuild the correlation table from a rolling stats CSV",
	Args:  cobra.NoArgs,
	RunE:  runCorrelate,
}

func init() {
	correlateCmd.Flags().String("rolling", "rolling_stats.csv", "rolling stats CSV path")
	correlateCmd.Flags().String("correlations", "correlation_table.csv", "correlation table CSV path")
}

func runCorrelate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(cfg.Output.Rolling)
	if err != nil {
		return fmt.Errorf("open rolling stats: %w", err)
	}
	defer f.Close()

	acc := correlate.New()
	stats, err := dataset.ReadObservations(f, func(o model.Observation) error {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		acc.Add(o)
		return nil
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", cfg.Output.Rolling, err)
	}
	logger.Info().
		Int64("rows", acc.Rows()).
		Int("skipped", stats.Skipped).
		Msg("reduced rolling stats")

	rows := acc.Correlations()
	if err := writeCorrelations(cfg.Output.Correlations, rows); err != nil {
		return err
	}
	report.PrintCorrelationTable(os.Stdout, rows)
	report.PrintPeaks(os.Stdout, rows)
	return nil
}
