package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pable/go-rollcorr/internal/config"
	"github.com/pable/go-rollcorr/internal/logging"
	"github.com/pable/go-rollcorr/internal/metrics"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zerolog.Nop()
	mtx     *metrics.Metrics
)

// flagKeys maps flag names to config keys. A flag set on the command line
// overrides the config file and environment.
var flagKeys = map[string]string{
	"db":               "storage.db_path",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
	"metrics-textfile": "metrics.textfile",
	"min-length":       "analysis.min_timeline_length",
	"max-window":       "analysis.max_window",
	"workers":          "analysis.workers",
	"events":           "output.events",
	"rolling":          "output.rolling",
	"correlations":     "output.correlations",
	"plot-dir":         "output.plot_dir",
	"plot-split":       "output.plot_split",
	"start-year":       "fetch.start_year",
	"end-year":         "fetch.end_year",
	"chunk-days":       "fetch.chunk_days",
	"cache":            "fetch.cache_enabled",
	"cache-dir":        "fetch.cache_dir",
	"model":            "analyze.model",
	"api-key":          "analyze.api_key",
}

var rootCmd = &cobra.Command{
	Use:   "rollcorr",
	Short: "Rolling-window batting correlation analysis",
	Long: `Download Statcast plate appearances, compute each batter's rolling AVG, OBP
and SLG over the previous N plate appearances for every N, and measure how
well each window predicts the next plate appearance.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to YAML config file")
	pf.String("db", "rollcorr.db", "path to SQLite run history database")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	pf.String("metrics-textfile", "", "write Prometheus metrics to this file on success")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(rollingCmd)
	rootCmd.AddCommand(correlateCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(analyzeCmd)
}

// setup loads configuration with the invoked command's flags bound on top,
// then builds the logger and metrics registry.
func setup(cmd *cobra.Command, args []string) error {
	v := viper.New()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}

	c, err := config.LoadWith(v, cfgFile)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = c

	logger, err = logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	mtx = metrics.New()
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if err := mtx.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
