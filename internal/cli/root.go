// Package cli contains the CLI commands for the geocoding service.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/parishstaq/geocoding-service/internal/adapter/googlemaps"
	"github.com/parishstaq/geocoding-service/internal/config"
	"github.com/parishstaq/geocoding-service/internal/geocoding"
	"github.com/parishstaq/geocoding-service/internal/observability"
	"github.com/parishstaq/geocoding-service/internal/store"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "geocoding",
	Short: "Permanent geocoding cache backed by the Google Maps API",
	Long: `The geocoding service resolves street addresses to coordinates through a
permanent SQLite-backed cache. Each distinct address is paid for at most
once; every later lookup is served locally.

Configuration comes from environment variables (GOOGLE_MAPS_API_KEY,
GEOCODE_DB_PATH, and friends).`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command shares.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, observability.NewLogger(cfg.LogLevel, cfg.LogFormat), nil
}

// openStore opens (and migrates) the cache database for read-style commands.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	return st, nil
}

// buildService wires the full geocoding stack for commands that may call the
// provider. The returned store must be closed by the caller.
func buildService(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, publisher geocoding.EventPublisher) (*geocoding.Service, *store.Store, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	provider := googlemaps.NewClient(cfg.GoogleMapsAPIKey, cfg.GoogleMapsTimeout, metrics, logger)
	limiter := geocoding.NewRateLimiter(cfg.RateInterval)

	svc, err := geocoding.New(st, provider, limiter, logger, metrics, geocoding.Options{
		DefaultState: cfg.DefaultState,
		UnitPriceUSD: cfg.CostPerRequestUSD,
		ProviderName: googlemaps.ProviderName,
		Publisher:    publisher,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return svc, st, nil
}

// printJSON writes v to stdout, indented for human eyes.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
