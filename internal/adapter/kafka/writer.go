package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mstlaur1/montreal-score/internal/config"
	"github.com/mstlaur1/montreal-score/internal/domain"
)

// Writer publishes normalized permits to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured permits topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishPermits serializes and publishes one year's normalized permits
// in a single WriteMessages call.
func (w *Writer) PublishPermits(ctx context.Context, year int, permits []domain.NormalizedPermit) error {
	if len(permits) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(permits))
	for i := range permits {
		msg, err := serializeToMessage(year, permits[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	w.logger.Info("published permits", "year", year, "count", len(permits))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a permit into a Kafka message keyed by its
// application number, so reruns of the same year land updates for one
// permit on one partition. Rows predating the application-number column
// fall back to the permit id; rows with neither get a null key.
func serializeToMessage(year int, p domain.NormalizedPermit) (kafkago.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize permit: %w", err)
	}

	var key []byte
	switch {
	case p.ExternalID != nil:
		key = []byte(*p.ExternalID)
	case p.PermitID != nil:
		key = []byte(*p.PermitID)
	}

	return kafkago.Message{
		Key:   key,
		Value: data,
		Headers: []kafkago.Header{
			{Key: "borough", Value: []byte(p.BoroughNormalized)},
			{Key: "year", Value: []byte(strconv.Itoa(year))},
		},
	}, nil
}
