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

func (d *DB) GetConfig(ctx context.Context, eventID string) (*models.TicketConfig, error) {
	var cfg models.TicketConfig
	err := d.Bun.NewSelect().
		Model(&cfg).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpsertConfig writes the organizer-editable fields. Sold and reserved
// counters are never taken from the caller, and capacity may not drop below
// what is already sold or held.
func (d *DB) UpsertConfig(ctx context.Context, cfg *models.TicketConfig) (*models.TicketConfig, error) {
	now := time.Now().UTC()

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.TicketConfig)(nil)).
			Where("event_id = ?", cfg.EventID).
			Exists(ctx)
		if err != nil {
			return err
		}

		if !exists {
			row := *cfg
			row.SoldCount = 0
			row.ReservedCount = 0
			row.CreatedAt = now
			row.UpdatedAt = now
			_, err := tx.NewInsert().Model(&row).Exec(ctx)
			return err
		}

		row := *cfg
		row.UpdatedAt = now
		res, err := tx.NewUpdate().
			Model(&row).
			Column("event_name", "venue", "event_date", "enabled", "price", "total_capacity",
				"sales_start", "sales_end", "max_per_order", "has_seating", "updated_at").
			Where("event_id = ?", cfg.EventID).
			Where("sold_count + reserved_count <= ?", cfg.TotalCapacity).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("capacity %d is below tickets already sold or held: %w", cfg.TotalCapacity, models.ErrCapacityExceeded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return d.GetConfig(ctx, cfg.EventID)
}
