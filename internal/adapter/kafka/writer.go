// Package kafka publishes collected payloads to the downstream event
// stream. Azure Event Hubs exposes a Kafka-protocol endpoint, so the same
// writer serves both plain Kafka and Event Hubs deployments.
package kafka

import (
	"context"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/bizscope/weather-collector/internal/config"
)

// Writer produces messages to the event-stream topic. One opaque payload
// per call; the collector's responsibility ends at producing the payload.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish sends one payload keyed by the collection source/key string.
func (w *Writer) Publish(ctx context.Context, key string, payload []byte) error {
	return w.writer.WriteMessages(ctx, buildMessage(key, payload, time.Now()))
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func buildMessage(key string, payload []byte, at time.Time) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("weather-collector")},
			{Key: "collected_at", Value: []byte(at.UTC().Format(time.RFC3339))},
		},
	}
}
