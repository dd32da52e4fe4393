package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/core"
)

// KafkaConfig holds the settings for the Kafka change feed.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks"` // 0, 1, or -1 (all)
	MinBytes     int           `yaml:"min_bytes"`
	MaxBytes     int           `yaml:"max_bytes"`
	MaxWait      time.Duration `yaml:"max_wait"`
}

// KafkaSink publishes change events to a Kafka topic, keyed by collection so
// one collection's events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
	mu     sync.RWMutex
	closed bool
}

// NewKafkaSink creates a Kafka-backed change-event sink.
func NewKafkaSink(config KafkaConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}

	zap.S().Infow("events: kafka sink ready", "topic", config.Topic, "brokers", config.Brokers)
	return &KafkaSink{writer: writer, topic: config.Topic}, nil
}

// Publish writes one change event to the topic.
func (s *KafkaSink) Publish(ctx context.Context, event core.ChangeEvent) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrQueueClosed
	}
	s.mu.RUnlock()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Collection),
		Value: payload,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(string(event.Op))},
			{Key: "collection", Value: []byte(event.Collection)},
		},
	}
	if err := s.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write change event to Kafka: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// KafkaFeed consumes change events from the topic for downstream processors.
type KafkaFeed struct {
	reader *kafka.Reader
	topic  string
	mu     sync.RWMutex
	closed bool
}

// NewKafkaFeed creates a consumer over the change-event topic. New consumer
// groups start at the beginning of the topic.
func NewKafkaFeed(config KafkaConfig) (*KafkaFeed, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = "backroom-changefeed"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})
	return &KafkaFeed{reader: reader, topic: config.Topic}, nil
}

// Next reads change events until batchSize is reached or no message arrives
// within the per-read timeout. Offsets are committed as events are returned.
func (f *KafkaFeed) Next(ctx context.Context, batchSize int) ([]core.ChangeEvent, error) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	f.mu.RUnlock()

	if batchSize <= 0 {
		batchSize = 100
	}

	events := make([]core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		message, err := f.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			zap.S().Warnw("events: kafka read failed", "topic", f.topic, "error", err)
			break
		}

		var event core.ChangeEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			zap.S().Warnw("events: skipping malformed change event",
				"topic", f.topic, "partition", message.Partition, "offset", message.Offset, "error", err)
			continue
		}
		events = append(events, event)

		if err := f.reader.CommitMessages(ctx, message); err != nil {
			zap.S().Warnw("events: offset commit failed",
				"topic", f.topic, "partition", message.Partition, "offset", message.Offset, "error", err)
		}
	}
	return events, nil
}

// Close closes the underlying reader.
func (f *KafkaFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.reader.Close()
}
