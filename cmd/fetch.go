package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download regular-season Statcast data",
	Long: `Downloads pitch-level Statcast data from Baseball Savant one month at a time
(optionally split into smaller chunks) and writes a single CSV. Ranges that
keep failing after retries are skipped. An existing output file is kept.

Examples:
  rollcorr fetch --start-year 2023 --end-year 2024
  rollcorr fetch --chunk-days 7 --events data/statcast.csv`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("events", "statcast_data.csv", "output CSV path")
	addFetchFlags(fetchCmd)
}

// addFetchFlags registers the download flags shared by fetch and run.
func addFetchFlags(c *cobra.Command) {
	c.Flags().Int("start-year", 2013, "first season to download")
	c.Flags().Int("end-year", 2023, "last season to download")
	c.Flags().Int("chunk-days", 0, "split each month into requests of this many days (0 = whole month)")
	c.Flags().Bool("cache", true, "cache raw responses between runs")
	c.Flags().String("cache-dir", ".statcast_cache", "response cache directory")
}

func runFetch(cmd *cobra.Command, args []string) error {
	sum, err := fetchEvents(cmd.Context())
	if err != nil {
		return err
	}
	if sum.Skipped {
		fmt.Fprintf(os.Stdout, "%s already exists, nothing to download.\n", sum.Path)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Saved %d rows from %d ranges to %s", sum.Rows, sum.Ranges, sum.Path)
	if sum.Failed > 0 {
		fmt.Fprintf(os.Stdout, " (%d ranges failed)", sum.Failed)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}
