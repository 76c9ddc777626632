package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/kafka"
	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/order"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
)

type TicketSender interface {
	SendTickets(ctx context.Context, orderID string, force bool) error
}

// Worker emails tickets for every completed order announced on Kafka.
type Worker struct {
	Sender     TicketSender
	MaxElapsed time.Duration
	logger     *logger.Logger
	newBackOff func() backoff.BackOff
}

func NewWorker(sender TicketSender, log *logger.Logger) *Worker {
	w := &Worker{Sender: sender, MaxElapsed: 2 * time.Minute, logger: log}
	w.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxElapsedTime = w.MaxElapsed
		return b
	}
	return w
}

// HandleOrderCompleted is a kafka.Handler. A delivery that keeps failing is
// given up on so it does not block the partition; the order stays unsent and
// can be resent by an organizer.
func (w *Worker) HandleOrderCompleted(ctx context.Context, msg kafkago.Message) error {
	var evt models.OrderCompletedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return kafka.Permanent(fmt.Errorf("bad order.completed payload: %w", err))
	}
	if evt.OrderID == "" {
		return kafka.Permanent(errors.New("order.completed without order_id"))
	}

	send := func() error {
		err := w.Sender.SendTickets(ctx, evt.OrderID, false)
		var oe *order.OrderError
		if errors.As(err, &oe) || errors.Is(err, order.ErrNotifierUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		w.logger.Warn("DELIVERY", fmt.Sprintf("Sending tickets for order %s failed, retrying in %s: %v", evt.OrderID, next, err))
	}

	if err := backoff.RetryNotify(send, backoff.WithContext(w.newBackOff(), ctx), notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Error("DELIVERY", fmt.Sprintf("Giving up on tickets for order %s: %v", evt.OrderID, err))
		return kafka.Permanent(err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, consumer *kafka.Consumer, topic string) error {
	return consumer.Start(ctx, topic, w.HandleOrderCompleted)
}
