package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Command flags need to be global for cobra
var exportOutput string

//nolint:gochecknoglobals // Cobra commands are typically global
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all cache entries as JSON",
	Long: `Export dumps every cache entry, valid and errored alike, as a JSON array
ordered by insertion. Raw provider payloads are omitted.

Examples:
  geocoding export --output cache_backup.json
  geocoding export | jq '.[] | select(.error_message != null)'`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
}

func runExport(cmd *cobra.Command, _ []string) error {
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

	entries, err := st.ExportAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("export cache: %w", err)
	}

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	if exportOutput != "" {
		logger.Info("cache exported", "path", exportOutput, "entries", len(entries))
	}
	return nil
}
