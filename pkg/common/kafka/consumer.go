package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

const commitTimeout = 3 * time.Second

// Delivery is one fetched message together with the commit that advances
// the consumer group cursor past it.
type Delivery struct {
	Message kafka.Message
	commit  func(ctx context.Context) error
}

func NewDelivery(msg kafka.Message, commit func(ctx context.Context) error) Delivery {
	return Delivery{Message: msg, commit: commit}
}

func (d Delivery) Commit(ctx context.Context) error {
	if d.commit == nil {
		return nil
	}
	return d.commit(ctx)
}

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0, // manual commits
	})

	return &Consumer{reader: reader}
}

// Fetch blocks until the next message is available. Nothing is committed
// until the returned Delivery's Commit is called.
func (c *Consumer) Fetch(ctx context.Context) (Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Delivery{}, err
	}

	commit := func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, commitTimeout)
		defer cancel()
		return c.reader.CommitMessages(cctx, msg)
	}

	return NewDelivery(msg, commit), nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
