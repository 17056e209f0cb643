package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parishstaq/geocoding-service/internal/domain"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	checkStreet string
	checkCity   string
	checkState  string
	checkZip    string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Look an address up in the cache without calling the provider",
	Long: `Check normalizes the given address and reports the cache entry for it, if
any. It never calls the Google Maps API, so it works without an API key
and costs nothing.

Examples:
  geocoding check --street "1702 NE 65th St" --city Seattle --zip 98115`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkStreet, "street", "", "Street address")
	checkCmd.Flags().StringVar(&checkCity, "city", "", "City")
	checkCmd.Flags().StringVar(&checkState, "state", "", "State (defaults to DEFAULT_STATE)")
	checkCmd.Flags().StringVar(&checkZip, "zip", "", "ZIP code")

	_ = checkCmd.MarkFlagRequired("street")
	_ = checkCmd.MarkFlagRequired("city")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, _, err := setup()
	if err != nil {
		return err
	}

	state := checkState
	if state == "" {
		state = cfg.DefaultState
	}
	key := domain.NormalizeKey(checkStreet, checkCity, state, checkZip)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	entry, err := st.Get(cmd.Context(), key)
	if err != nil {
		return fmt.Errorf("cache lookup: %w", err)
	}
	if entry == nil {
		fmt.Printf("not cached: %s\n", key)
		return nil
	}
	return printJSON(entry)
}
