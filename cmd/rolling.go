package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-rollcorr/internal/report"
)

var rollingNoRecord bool

var rollingCmd = &cobra.Command{
	Use:   "rolling",
	Short: "Compute rolling stats and the correlation table from an events CSV",
	Long: `Labels every plate appearance, groups them into per-batter timelines and,
for each batter with enough history, writes the rolling AVG/OBP/SLG over every
window size together with the next plate appearance's outcome. The
correlation table is reduced from the same stream and the run is recorded in
the history database.`,
	Args: cobra.NoArgs,
	RunE: runRollingCmd,
}

func init() {
	addInputFlags(rollingCmd)
	addAnalysisFlags(rollingCmd)
	rollingCmd.Flags().BoolVar(&rollingNoRecord, "no-record", false, "do not record the run in the history database")
}

// addInputFlags registers the file location flags shared by pipeline commands.
func addInputFlags(c *cobra.Command) {
	c.Flags().String("events", "statcast_data.csv", "events CSV path")
	c.Flags().String("rolling", "rolling_stats.csv", "rolling stats CSV path")
	c.Flags().String("correlations", "correlation_table.csv", "correlation table CSV path")
}

// addAnalysisFlags registers the window generation flags.
func addAnalysisFlags(c *cobra.Command) {
	c.Flags().Int("min-length", 260, "minimum plate appearances for a batter to be analyzed")
	c.Flags().Int("max-window", 250, "largest rolling window")
	c.Flags().Int("workers", 0, "concurrent batters; each holds its full rolling table in memory (0 = min(CPUs, 4))")
}

func runRollingCmd(cmd *cobra.Command, args []string) error {
	res, err := runRolling(cmd.Context(), !rollingNoRecord)
	if err != nil {
		return err
	}
	printRollingResult(res)
	return nil
}

func printRollingResult(res rollingResult) {
	report.PrintRunSummary(os.Stdout, res.Run)
	report.PrintCorrelationTable(os.Stdout, res.Correlations)
	report.PrintPeaks(os.Stdout, res.Correlations)
	if !rollingNoRecord {
		fmt.Fprintf(os.Stdout, "\nRecorded run %s\n", res.Run.ID)
	}
}
