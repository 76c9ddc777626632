package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the slice of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Handler func(ctx context.Context, msg kafka.Message) error

// Consumer delivers each message to a handler and commits it only after the
// handler succeeds, so a crash redelivers rather than drops.
type Consumer struct {
	reader     MessageReader
	log        *logger.Logger
	retryDelay time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, log: log, retryDelay: 2 * time.Second}
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger, retryDelay time.Duration) *Consumer {
	return &Consumer{reader: reader, log: log, retryDelay: retryDelay}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, topic string, handle Handler) error {
	c.log.LogKafka("CONSUME", topic, "consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading from %s: %v", topic, err))
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		for {
			err := handle(ctx, msg)
			if err == nil {
				break
			}
			var perm *PermanentError
			if errors.As(err, &perm) {
				c.log.Error("KAFKA", fmt.Sprintf("Dropping message %s@%d on %s: %v", string(msg.Key), msg.Offset, topic, err))
				break
			}
			c.log.Warn("KAFKA", fmt.Sprintf("Handler failed for %s@%d, retrying: %v", string(msg.Key), msg.Offset, err))
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("KAFKA", fmt.Sprintf("Failed to commit offset %d on %s: %v", msg.Offset, topic, err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// PermanentError marks a message that will never succeed, e.g. a bad payload.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	return &PermanentError{Err: err}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
