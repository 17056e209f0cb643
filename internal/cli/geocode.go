package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/parishstaq/geocoding-service/internal/domain"
	"github.com/parishstaq/geocoding-service/internal/observability"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var (
	geocodeStreet string
	geocodeCity   string
	geocodeState  string
	geocodeZip    string
	geocodeForce  bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode a single address, cache-first",
	Long: `Geocode resolves one address to coordinates. A valid cache entry is served
locally; otherwise the Google Maps API is called and the answer is cached
permanently.

Examples:
  geocoding geocode --street "1702 NE 65th St" --city Seattle --zip 98115
  geocoding geocode --street "1702 NE 65th St" --city Seattle --force`,
	RunE: runGeocode,
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	geocodeCmd.Flags().StringVar(&geocodeStreet, "street", "", "Street address")
	geocodeCmd.Flags().StringVar(&geocodeCity, "city", "", "City")
	geocodeCmd.Flags().StringVar(&geocodeState, "state", "", "State (defaults to DEFAULT_STATE)")
	geocodeCmd.Flags().StringVar(&geocodeZip, "zip", "", "ZIP code")
	geocodeCmd.Flags().BoolVar(&geocodeForce, "force", false, "Bypass the cache and refresh from the provider")

	_ = geocodeCmd.MarkFlagRequired("street")
	_ = geocodeCmd.MarkFlagRequired("city")
}

func runGeocode(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	svc, st, err := buildService(cfg, logger, observability.NewMetrics(), nil)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	result, err := svc.GeocodeAddress(cmd.Context(), geocodeStreet, geocodeCity, geocodeState, geocodeZip, geocodeForce)
	if err != nil {
		if errors.Is(err, domain.ErrNoResults) {
			return errors.New("no results for address")
		}
		return err
	}
	return printJSON(result)
}
