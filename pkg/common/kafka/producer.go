package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/admoderation/platform/pkg/common/logger"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	source string
}

func NewProducer(brokers []string, topic, source string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer, source: source}
}

func (p *Producer) Topic() string {
	return p.writer.Topic
}

// Publish writes one message synchronously. Messages sharing a key land on
// the same partition.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "source", Value: []byte(p.source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"key":   key,
			"topic": p.writer.Topic,
		}).Error("Failed to publish message")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"key":   key,
		"topic": p.writer.Topic,
	}).Debug("Message published")

	return nil
}

func (p *Producer) PublishJSON(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.Publish(ctx, key, payload)
}

// Close flushes pending writes and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
