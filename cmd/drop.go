package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pable/go-rollcorr/internal/storage"
)

var dropForce bool

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the run history database",
	Long: `Delete the SQLite run history and its WAL files. Every recorded run and
correlation table is lost; CSV and PNG outputs are left alone. Nothing is
removed unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().BoolVarP(&dropForce, "force", "f", false, "delete without asking")
}

func runDrop(cmd *cobra.Command, args []string) error {
	path := cfg.Storage.DBPath
	if !dropForce {
		fmt.Fprintf(cmd.ErrOrStderr(), "Would delete %s; pass --force to do it.\n", path)
		return nil
	}
	existed, err := storage.Remove(path)
	if err != nil {
		return err
	}
	if !existed {
		logger.Info().Str("path", path).Msg("no run history to drop")
		return nil
	}
	logger.Info().Str("path", path).Msg("dropped run history")
	return nil
}
