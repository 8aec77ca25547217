package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// NewProducerFromConfig creates a producer wired from service configuration
func NewProducerFromConfig(cfg *config.Config, logger ectologger.Logger) *Producer {
	return NewProducer(ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PlayerEvent represents a resolution lifecycle event about a canonical
// player. EventType is one of player.canonical_created, player.link_created,
// player.case_opened, player.merged.
type PlayerEvent struct {
	EventType   string            `json:"event_type"`
	CanonicalID string            `json:"canonical_id,omitempty"`
	SourceKind  models.SourceKind `json:"source_kind,omitempty"`
	SourceID    string            `json:"source_id,omitempty"`
	Data        json.RawMessage   `json:"data,omitempty"`
	Version     int               `json:"version,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// PublishPlayerEvent publishes a player event to Kafka
func (p *Producer) PublishPlayerEvent(ctx context.Context, event *PlayerEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishPlayerEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := event.CanonicalID
	if key == "" {
		key = string(event.SourceKind) + "/" + event.SourceID
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
	}
	if tp := tracing.GetTraceParent(ctx); tp != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(tp)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish player event")
		metrics.RecordKafkaPublish("failed")
		return err
	}

	metrics.RecordKafkaPublish("ok")
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":   event.EventType,
		"canonical_id": event.CanonicalID,
	}).Debug("Published player event")

	return nil
}

// Health returns the producer health status
func (p *Producer) Health() bool {
	return p.writer != nil
}
