package analytics

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gameday-ticketing/internal/models"

	"github.com/uptrace/bun"
)

var ErrEventNotFound = errors.New("event not found")

// Service builds organizer-facing summaries straight from the ticketing tables.
type Service struct {
	db  *bun.DB
	loc *time.Location
}

func NewService(db *bun.DB, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, loc: loc}
}

// EventSummary represents the gate and box-office picture for one event
type EventSummary struct {
	EventID       string `json:"event_id"`
	EventName     string `json:"event_name"`
	TotalCapacity int    `json:"total_capacity"`
	Sold          int    `json:"sold"`
	Reserved      int    `json:"reserved"`
	Available     int    `json:"available"`

	Orders        OrderCounts `json:"orders"`
	Revenue       int64       `json:"revenue"`
	Subtotal      int64       `json:"subtotal"`
	ProcessingFee int64       `json:"processing_fees"`

	TicketsIssued   int `json:"tickets_issued"`
	TicketsAdmitted int `json:"tickets_admitted"`

	ScanResults map[models.ScanResult]int `json:"scan_results"`
	DailySales  []DailySalesMetrics       `json:"daily_sales"`
}

type OrderCounts struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DailySalesMetrics contains metrics for a single day
type DailySalesMetrics struct {
	Date        string `json:"date"`
	Revenue     int64  `json:"revenue"`
	TicketsSold int    `json:"tickets_sold"`
}

type orderTotalRow struct {
	Status        models.PaymentStatus `bun:"payment_status"`
	Orders        int                  `bun:"orders"`
	GrandTotal    int64                `bun:"grand_total"`
	Subtotal      int64                `bun:"subtotal"`
	ProcessingFee int64                `bun:"processing_fee"`
}

type scanTotalRow struct {
	Result models.ScanResult `bun:"result"`
	Scans  int               `bun:"scans"`
}

func (s *Service) GetEventSummary(ctx context.Context, eventID string) (*EventSummary, error) {
	var cfg models.TicketConfig
	err := s.db.NewSelect().Model(&cfg).Where("event_id = ?", eventID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	summary := &EventSummary{
		EventID:       cfg.EventID,
		EventName:     cfg.EventName,
		TotalCapacity: cfg.TotalCapacity,
		Sold:          cfg.SoldCount,
		Reserved:      cfg.ReservedCount,
		Available:     cfg.Available(),
		ScanResults:   map[models.ScanResult]int{},
		DailySales:    []DailySalesMetrics{},
	}

	if err := s.orderTotals(ctx, summary); err != nil {
		return nil, err
	}
	if err := s.ticketTotals(ctx, summary); err != nil {
		return nil, err
	}
	if err := s.scanTotals(ctx, summary); err != nil {
		return nil, err
	}
	if err := s.dailySales(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Service) orderTotals(ctx context.Context, summary *EventSummary) error {
	var rows []orderTotalRow
	err := s.db.NewSelect().
		Model((*models.TicketOrder)(nil)).
		Column("payment_status").
		ColumnExpr("COUNT(*) AS orders").
		ColumnExpr("COALESCE(SUM(grand_total), 0) AS grand_total").
		ColumnExpr("COALESCE(SUM(subtotal), 0) AS subtotal").
		ColumnExpr("COALESCE(SUM(processing_fee), 0) AS processing_fee").
		Where("event_id = ?", summary.EventID).
		Group("payment_status").
		Scan(ctx, &rows)
	if err != nil {
		return err
	}

	for _, row := range rows {
		switch row.Status {
		case models.PaymentPending:
			summary.Orders.Pending = row.Orders
		case models.PaymentFailed:
			summary.Orders.Failed = row.Orders
		case models.PaymentCompleted:
			summary.Orders.Completed = row.Orders
			summary.Revenue = row.GrandTotal
			summary.Subtotal = row.Subtotal
			summary.ProcessingFee = row.ProcessingFee
		}
	}
	return nil
}

func (s *Service) ticketTotals(ctx context.Context, summary *EventSummary) error {
	issued, err := s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", summary.EventID).
		Count(ctx)
	if err != nil {
		return err
	}
	admitted, err := s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", summary.EventID).
		Where("status = ?", models.TicketUsed).
		Count(ctx)
	if err != nil {
		return err
	}
	summary.TicketsIssued = issued
	summary.TicketsAdmitted = admitted
	return nil
}

func (s *Service) scanTotals(ctx context.Context, summary *EventSummary) error {
	var rows []scanTotalRow
	err := s.db.NewSelect().
		Model((*models.TicketScan)(nil)).
		Column("result").
		ColumnExpr("COUNT(*) AS scans").
		Where("event_id = ?", summary.EventID).
		Group("result").
		Scan(ctx, &rows)
	if err != nil {
		return err
	}
	for _, row := range rows {
		summary.ScanResults[row.Result] = row.Scans
	}
	return nil
}

// dailySales buckets completed orders by local calendar day. Bucketing
// happens here rather than in SQL so the day boundary follows the display
// timezone on every database.
func (s *Service) dailySales(ctx context.Context, summary *EventSummary) error {
	var orders []models.TicketOrder
	err := s.db.NewSelect().
		Model(&orders).
		Column("completed_at", "grand_total", "ticket_count").
		Where("event_id = ?", summary.EventID).
		Where("payment_status = ?", models.PaymentCompleted).
		Order("completed_at ASC").
		Scan(ctx)
	if err != nil {
		return err
	}

	index := map[string]int{}
	for _, o := range orders {
		day := o.CompletedAt.In(s.loc).Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(summary.DailySales)
			index[day] = i
			summary.DailySales = append(summary.DailySales, DailySalesMetrics{Date: day})
		}
		summary.DailySales[i].Revenue += o.GrandTotal
		summary.DailySales[i].TicketsSold += o.TicketCount
	}
	return nil
}
