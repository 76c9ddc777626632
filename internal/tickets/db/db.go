package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gameday-ticketing/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByQRCode(ctx context.Context, qrCode string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("qr_code = ?", qrCode).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("issued_at ASC", "ticket_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// RedeemTicket runs the gate state machine for one scan in a single
// transaction. The valid->used flip is a guarded UPDATE, so of two concurrent
// scans of the same code exactly one sees ScanValid. Every outcome appends
// exactly one row to ticket_scans.
func (d *DB) RedeemTicket(ctx context.Context, qrCode, eventID, scannerID string, now time.Time) (*models.TicketScan, *models.Ticket, error) {
	var (
		scan   models.TicketScan
		ticket *models.Ticket
	)

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ticket = nil

		var found models.Ticket
		err := tx.NewSelect().Model(&found).Where("qr_code = ?", qrCode).Limit(1).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to look up ticket: %w", err)
		default:
			ticket = &found
		}

		result := models.EvaluateScan(ticket, eventID)
		if result == models.ScanValid {
			res, err := tx.NewUpdate().
				Model((*models.Ticket)(nil)).
				Set("status = ?", models.TicketUsed).
				Set("used_at = ?", now).
				Set("scanned_by = ?", scannerID).
				Where("ticket_id = ?", ticket.TicketID).
				Where("status = ?", models.TicketValid).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to redeem ticket: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}

			if n == 1 {
				ticket.Status = models.TicketUsed
				ticket.UsedAt = now
				ticket.ScannedBy = scannerID
			} else {
				// Another scanner won; report what it left behind.
				if err := tx.NewSelect().Model(ticket).WherePK().Scan(ctx); err != nil {
					return fmt.Errorf("failed to reload ticket: %w", err)
				}
				result = models.EvaluateScan(ticket, eventID)
				if result == models.ScanValid {
					return fmt.Errorf("ticket %s changed during scan", ticket.TicketID)
				}
			}
		}

		scan = models.TicketScan{
			ScanID:    uuid.New().String(),
			EventID:   eventID,
			ScannedBy: scannerID,
			ScannedAt: now,
			Result:    result,
		}
		if ticket != nil {
			scan.TicketID = ticket.TicketID
			scan.TicketNumber = ticket.TicketNumber
			scan.OwnerName = ticket.OwnerName
		}

		if _, err := tx.NewInsert().Model(&scan).Exec(ctx); err != nil {
			return fmt.Errorf("failed to record scan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &scan, ticket, nil
}

func (d *DB) ListScans(ctx context.Context, eventID string, limit int) ([]models.TicketScan, error) {
	var scans []models.TicketScan
	q := d.Bun.NewSelect().
		Model(&scans).
		Where("event_id = ?", eventID).
		Order("scanned_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return scans, nil
}
