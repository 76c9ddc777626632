package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gameday-ticketing/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) Committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Key: []byte("order-1"), Offset: 1},
		{Key: []byte("order-2"), Offset: 2},
	}}
	c := NewConsumerWithReader(reader, logger.NewConsoleLogger(nil), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	attempts := map[string]int{}
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, "ticketing.order.completed", func(ctx context.Context, msg kafka.Message) error {
			mu.Lock()
			defer mu.Unlock()
			attempts[string(msg.Key)]++
			if string(msg.Key) == "order-1" && attempts["order-1"] < 3 {
				return errors.New("notification service down")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts["order-1"])
	assert.Equal(t, 1, attempts["order-2"])
	assert.Equal(t, []int64{1, 2}, reader.Committed())
}

func TestConsumerDropsPermanentFailures(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{{Key: []byte("bad"), Offset: 7}}}
	c := NewConsumerWithReader(reader, logger.NewConsoleLogger(nil), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	go c.Start(ctx, "t", func(ctx context.Context, msg kafka.Message) error {
		calls++
		return Permanent(errors.New("malformed payload"))
	})

	require.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, calls)
}
