package cmd

import (
	"github.com/spf13/cobra"
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Chart a correlation table as PNG line plots",
	Long: `Draws AVG, OBP and SLG correlation against window size for the full range
and for the ranges below and above --plot-split, e.g. correlation_1_250.png,
correlation_1_10.png and correlation_11_250.png.`,
	Args: cobra.NoArgs,
	RunE: runPlot,
}

func init() {
	plotCmd.Flags().String("correlations", "correlation_table.csv", "correlation table CSV path")
	addPlotFlags(plotCmd)
}

func addPlotFlags(c *cobra.Command) {
	c.Flags().String("plot-dir", "plots", "directory for PNG charts")
	c.Flags().Int("plot-split", 10, "last window of the short-range chart")
}

func runPlot(cmd *cobra.Command, args []string) error {
	rows, err := readCorrelations(cfg.Output.Correlations)
	if err != nil {
		return err
	}
	_, err = renderPlots(rows)
	return err
}
