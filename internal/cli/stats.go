package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parishstaq/geocoding-service/internal/geocoding"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache statistics and the estimated API spend",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, _, err := setup()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	raw, err := st.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}
	return printJSON(geocoding.CacheStatsFrom(raw, cfg.CostPerRequestUSD))
}
