package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.TicketOrder, error) {
	var order models.TicketOrder
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreatePendingOrder holds order.TicketCount seats against the event's
// capacity and inserts the pending order in the same transaction.
func (d *DB) CreatePendingOrder(ctx context.Context, order *models.TicketOrder) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := reserve(ctx, tx, order.EventID, order.TicketCount); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return nil
	})
}

// CreateCompletedOrder is the zero-cost path: the order is born completed,
// its tickets are inserted and the sold counter moves, all or nothing.
func (d *DB) CreateCompletedOrder(ctx context.Context, order *models.TicketOrder, tickets []models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := incrementSold(ctx, tx, order.EventID, order.TicketCount); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return insertTickets(ctx, tx, tickets)
	})
}

func (d *DB) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketOrder)(nil)).
		Set("payment_intent_id = ?", intentID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("order_id = ?", orderID).
		Where("payment_status = ?", models.PaymentPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectOne(res, models.ErrOrderNotPending)
}

// CompleteOrder flips a pending order to completed, converts its reservation
// into sold seats and inserts its tickets in one transaction. A second call
// for the same order returns ErrOrderNotPending and changes nothing.
func (d *DB) CompleteOrder(ctx context.Context, orderID, transactionID string, tickets []models.Ticket, now time.Time) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var order models.TicketOrder
		err := tx.NewSelect().Model(&order).Where("order_id = ?", orderID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}

		if len(tickets) != order.TicketCount {
			return fmt.Errorf("order %s needs %d tickets, got %d", orderID, order.TicketCount, len(tickets))
		}

		res, err := tx.NewUpdate().
			Model((*models.TicketOrder)(nil)).
			Set("payment_status = ?", models.PaymentCompleted).
			Set("transaction_id = ?", transactionID).
			Set("completed_at = ?", now).
			Set("updated_at = ?", now).
			Where("order_id = ?", orderID).
			Where("payment_status = ?", models.PaymentPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to complete order: %w", err)
		}
		if err := expectOne(res, models.ErrOrderNotPending); err != nil {
			return err
		}

		res, err = tx.NewUpdate().
			Model((*models.TicketConfig)(nil)).
			Set("sold_count = sold_count + ?", order.TicketCount).
			Set("reserved_count = reserved_count - ?", order.TicketCount).
			Set("updated_at = ?", now).
			Where("event_id = ?", order.EventID).
			Where("reserved_count >= ?", order.TicketCount).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to convert reservation: %w", err)
		}
		if err := expectOne(res, models.ErrCapacityExceeded); err != nil {
			return err
		}

		return insertTickets(ctx, tx, tickets)
	})
}

// FailOrder marks a pending order failed and releases its reservation. It
// reports false when the order had already left pending.
func (d *DB) FailOrder(ctx context.Context, orderID, reason string, now time.Time) (bool, error) {
	failed := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var order models.TicketOrder
		err := tx.NewSelect().Model(&order).Where("order_id = ?", orderID).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.TicketOrder)(nil)).
			Set("payment_status = ?", models.PaymentFailed).
			Set("failure_reason = ?", reason).
			Set("updated_at = ?", now).
			Where("order_id = ?", orderID).
			Where("payment_status = ?", models.PaymentPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		failed = true

		_, err = tx.NewUpdate().
			Model((*models.TicketConfig)(nil)).
			Set("reserved_count = CASE WHEN reserved_count >= ? THEN reserved_count - ? ELSE 0 END", order.TicketCount, order.TicketCount).
			Set("updated_at = ?", now).
			Where("event_id = ?", order.EventID).
			Exec(ctx)
		return err
	})
	return failed, err
}

func (d *DB) ListStalePendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.TicketOrder, error) {
	var orders []models.TicketOrder
	q := d.Bun.NewSelect().
		Model(&orders).
		Where("payment_status = ?", models.PaymentPending).
		Where("created_at < ?", createdBefore).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) MarkEmailSent(ctx context.Context, orderID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketOrder)(nil)).
		Set("email_sent = ?", true).
		Set("updated_at = ?", time.Now().UTC()).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectOne(res, models.ErrNotFound)
}

// ---------------- CAPACITY ----------------

func reserve(ctx context.Context, tx bun.Tx, eventID string, n int) error {
	res, err := tx.NewUpdate().
		Model((*models.TicketConfig)(nil)).
		Set("reserved_count = reserved_count + ?", n).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Where("sold_count + reserved_count + ? <= total_capacity", n).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve tickets: %w", err)
	}
	return expectOne(res, models.ErrCapacityExceeded)
}

func incrementSold(ctx context.Context, tx bun.Tx, eventID string, n int) error {
	res, err := tx.NewUpdate().
		Model((*models.TicketConfig)(nil)).
		Set("sold_count = sold_count + ?", n).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Where("sold_count + reserved_count + ? <= total_capacity", n).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment sold count: %w", err)
	}
	return expectOne(res, models.ErrCapacityExceeded)
}

func insertTickets(ctx context.Context, tx bun.Tx, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert tickets: %w", err)
	}
	return nil
}

func expectOne(res sql.Result, otherwise error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return otherwise
	}
	return nil
}
