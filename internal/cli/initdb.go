package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the cache database and its schema",
	Long: `Init creates the cache database file if it does not exist and applies the
schema. Running it against an existing database is safe; the schema is
applied idempotently.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	logger.Info("cache database ready", "path", cfg.DBPath)
	fmt.Printf("initialized %s\n", cfg.DBPath)
	return nil
}
