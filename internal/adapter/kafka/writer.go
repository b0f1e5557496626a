package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/climate-index/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces ICA records to a Kafka topic, one message per region-month.
// It implements pipeline.Sink.
type Publisher struct {
	writer *kafkago.Writer
	runID  string
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the given topic. runID is sent as
// a header so consumers can group the records of one run.
func NewPublisher(brokers []string, topic, runID string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, runID: runID, logger: logger}
}

// WriteIndex publishes the region's records in a single WriteMessages call.
// Records are keyed by region so a region's months stay on one partition.
func (p *Publisher) WriteIndex(ctx context.Context, region string, records []domain.ICARecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], p.runID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s: %w", region, err)
	}
	p.logger.Debug("ica records published", "region", region, "count", len(msgs))
	return nil
}

// WriteComponents is a no-op: only the composite index is published.
func (p *Publisher) WriteComponents(context.Context, string, []domain.TimeSeries) error {
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an ICARecord into a Kafka message.
func serializeToMessage(rec domain.ICARecord, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ica record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Region),
		Value: data,
		Time:  rec.Period.Time(),
		Headers: []kafkago.Header{
			{Key: "period", Value: []byte(rec.Period.String())},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "published_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}
