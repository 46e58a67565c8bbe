package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/nga-flood-trigger/internal/config"
	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

// Writer produces trigger records to a Kafka topic.
// It implements pipeline.TriggerPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured trigger topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTriggerTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes a trigger record and writes it keyed by monitoring date.
func (w *Writer) Publish(ctx context.Context, rec domain.TriggerRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish trigger %s: %w", rec.RunID, err)
	}
	w.logger.Debug("trigger published",
		"run_id", rec.RunID,
		"monitoring_date", domain.FormatDate(rec.MonitoringDate),
		"status", rec.Status(),
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a TriggerRecord into a Kafka message.
func serializeToMessage(rec domain.TriggerRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize trigger record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.FormatDate(rec.MonitoringDate)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(rec.RunID)},
			{Key: "level", Value: []byte(rec.Level)},
			{Key: "status", Value: []byte(rec.Status())},
			{Key: "evaluated_at", Value: []byte(rec.EvaluatedAt.Format(time.RFC3339))},
		},
	}, nil
}

// DecodeTrigger parses a message produced by Writer back into a TriggerRecord.
func DecodeTrigger(msg kafkago.Message) (domain.TriggerRecord, error) {
	var rec domain.TriggerRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return domain.TriggerRecord{}, fmt.Errorf("decode trigger record: %w", err)
	}
	return rec, nil
}
