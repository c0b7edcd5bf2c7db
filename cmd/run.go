package cmd

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, compute rolling stats, correlate and plot in one go",
	Long: `Runs the whole pipeline: downloads Statcast data when the events file is
missing, computes rolling stats and the correlation table, records the run and
renders the charts.`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

func init() {
	addInputFlags(runCmd)
	addAnalysisFlags(runCmd)
	addFetchFlags(runCmd)
	addPlotFlags(runCmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger.Info().Msg("step 1: fetching data")
	if _, err := fetchEvents(ctx); err != nil {
		return err
	}

	logger.Info().Msg("step 2: computing rolling stats and correlations")
	res, err := runRolling(ctx, true)
	if err != nil {
		return err
	}

	logger.Info().Msg("step 3: plotting")
	if _, err := renderPlots(res.Correlations); err != nil {
		return err
	}

	printRollingResult(res)
	return nil
}
