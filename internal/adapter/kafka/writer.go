// Package kafka publishes geocoded-address events for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/parishstaq/geocoding-service/internal/config"
	"github.com/parishstaq/geocoding-service/internal/domain"
)

// Writer produces geocoded-address events to a Kafka topic.
// It implements geocoding.EventPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishGeocoded serializes and publishes one geocoded-address event. The
// message is keyed by the normalized address key so per-address ordering is
// preserved across refreshes.
func (w *Writer) PublishGeocoded(ctx context.Context, evt domain.GeocodedEvent) error {
	msg, err := serializeToMessage(evt)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a GeocodedEvent into a Kafka message.
func serializeToMessage(evt domain.GeocodedEvent) (kafkago.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize geocoded event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(evt.AddressKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "accuracy", Value: []byte(evt.Accuracy)},
			{Key: "geocoded_at", Value: []byte(evt.GeocodedAt.Format(time.RFC3339))},
		},
	}, nil
}
