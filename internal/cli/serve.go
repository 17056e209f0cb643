package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/parishstaq/geocoding-service/internal/adapter/http"
	kafkaadapter "github.com/parishstaq/geocoding-service/internal/adapter/kafka"
	"github.com/parishstaq/geocoding-service/internal/geocoding"
	"github.com/parishstaq/geocoding-service/internal/observability"
	"github.com/parishstaq/geocoding-service/internal/store"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the geocoding HTTP service",
	Long: `Serve runs the geocoding API until interrupted. Kafka event publishing is
feature-flagged via KAFKA_EVENTS_ENABLED.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// storeReadiness reports readiness from a cache database ping.
type storeReadiness struct {
	st *store.Store
}

func (r storeReadiness) CheckReadiness(ctx context.Context) error {
	return r.st.Health(ctx)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	// Event publishing is feature-flagged via KAFKA_EVENTS_ENABLED.
	var publisher geocoding.EventPublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka event publishing enabled", "topic", cfg.KafkaEventsTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka event publishing disabled")
	}

	svc, st, err := buildService(cfg, logger, metrics, publisher)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, storeReadiness{st: st}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
