package db_test

import (
	"context"
	"testing"
	"time"

	"gameday-ticketing/internal/database/testdb"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/order/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	bunDB := testdb.New(t)
	return &db.DB{Bun: bunDB}, bunDB
}

func seedConfig(t *testing.T, bunDB *bun.DB, capacity, sold int) {
	t.Helper()
	now := time.Now().UTC()
	cfg := models.TicketConfig{
		EventID:       "evt-1",
		EventName:     "Spring Classic",
		Enabled:       true,
		Price:         1500,
		TotalCapacity: capacity,
		SoldCount:     sold,
		MaxPerOrder:   10,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := bunDB.NewInsert().Model(&cfg).Exec(context.Background())
	require.NoError(t, err)
}

func loadConfig(t *testing.T, bunDB *bun.DB) models.TicketConfig {
	t.Helper()
	var cfg models.TicketConfig
	require.NoError(t, bunDB.NewSelect().Model(&cfg).Where("event_id = ?", "evt-1").Scan(context.Background()))
	return cfg
}

func newOrder(count int, status models.PaymentStatus) *models.TicketOrder {
	now := time.Now().UTC()
	return &models.TicketOrder{
		OrderID:       uuid.New().String(),
		EventID:       "evt-1",
		BuyerEmail:    "parent@example.com",
		BuyerName:     "Sam Parent",
		LineItems:     []models.LineItem{{TierName: models.DefaultTierName, Quantity: count, UnitPrice: 1500}},
		TicketCount:   count,
		Subtotal:      int64(count) * 1500,
		ProcessingFee: 0,
		GrandTotal:    int64(count) * 1500,
		Currency:      "usd",
		PaymentMethod: models.PaymentMethodCard,
		PaymentStatus: status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newTickets(order *models.TicketOrder) []models.Ticket {
	tickets := make([]models.Ticket, order.TicketCount)
	for i := range tickets {
		id := uuid.New().String()
		tickets[i] = models.Ticket{
			TicketID:     id,
			OrderID:      order.OrderID,
			EventID:      order.EventID,
			TicketNumber: "TKT-TEST-000" + string(rune('A'+i)),
			QRCode:       "GDT|" + id,
			Status:       models.TicketValid,
			IssuedAt:     time.Now().UTC(),
		}
	}
	return tickets
}

func TestCreatePendingOrderReserves(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	seedConfig(t, bunDB, 10, 8)
	ctx := context.Background()

	err := orderDB.CreatePendingOrder(ctx, newOrder(3, models.PaymentPending))
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	order := newOrder(2, models.PaymentPending)
	require.NoError(t, orderDB.CreatePendingOrder(ctx, order))

	cfg := loadConfig(t, bunDB)
	assert.Equal(t, 8, cfg.SoldCount)
	assert.Equal(t, 2, cfg.ReservedCount)

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, 2, got.LineItems[0].Quantity)
}

func TestCompleteOrderIsExactlyOnce(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	seedConfig(t, bunDB, 10, 8)
	ctx := context.Background()

	order := newOrder(2, models.PaymentPending)
	require.NoError(t, orderDB.CreatePendingOrder(ctx, order))

	now := time.Now().UTC()
	require.NoError(t, orderDB.CompleteOrder(ctx, order.OrderID, "ch_1", newTickets(order), now))

	err := orderDB.CompleteOrder(ctx, order.OrderID, "ch_1", newTickets(order), now)
	assert.ErrorIs(t, err, models.ErrOrderNotPending)

	cfg := loadConfig(t, bunDB)
	assert.Equal(t, 10, cfg.SoldCount)
	assert.Equal(t, 0, cfg.ReservedCount)

	n, err := bunDB.NewSelect().Model((*models.Ticket)(nil)).Where("order_id = ?", order.OrderID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, "ch_1", got.TransactionID)
}

func TestCompleteOrderRejectsWrongTicketCount(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	seedConfig(t, bunDB, 10, 0)
	ctx := context.Background()

	order := newOrder(2, models.PaymentPending)
	require.NoError(t, orderDB.CreatePendingOrder(ctx, order))

	tickets := newTickets(order)[:1]
	assert.Error(t, orderDB.CompleteOrder(ctx, order.OrderID, "ch_1", tickets, time.Now().UTC()))

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)
}

func TestCreateCompletedOrder(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	seedConfig(t, bunDB, 3, 0)
	ctx := context.Background()

	order := newOrder(3, models.PaymentCompleted)
	order.PaymentMethod = models.PaymentMethodFree
	require.NoError(t, orderDB.CreateCompletedOrder(ctx, order, newTickets(order)))
	assert.Equal(t, 3, loadConfig(t, bunDB).SoldCount)

	extra := newOrder(1, models.PaymentCompleted)
	err := orderDB.CreateCompletedOrder(ctx, extra, newTickets(extra))
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	_, err = orderDB.GetOrderByID(ctx, extra.OrderID)
	assert.ErrorIs(t, err, models.ErrNotFound, "rolled back with the counter")
}

func TestFailOrderReleasesReservation(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	seedConfig(t, bunDB, 10, 0)
	ctx := context.Background()

	order := newOrder(4, models.PaymentPending)
	require.NoError(t, orderDB.CreatePendingOrder(ctx, order))
	assert.Equal(t, 4, loadConfig(t, bunDB).ReservedCount)

	failed, err := orderDB.FailOrder(ctx, order.OrderID, "card declined", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, 0, loadConfig(t, bunDB).ReservedCount)

	failed, err = orderDB.FailOrder(ctx, order.OrderID, "card declined", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, failed)

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, "card declined", got.FailureReason)

	err = orderDB.CompleteOrder(ctx, order.OrderID, "ch_2", newTickets(order), time.Now().UTC())
	assert.ErrorIs(t, err, models.ErrOrderNotPending, "failed is terminal")
}

func TestListStalePendingOrders(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	seedConfig(t, bunDB, 10, 0)
	ctx := context.Background()

	old := newOrder(1, models.PaymentPending)
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, orderDB.CreatePendingOrder(ctx, old))

	fresh := newOrder(1, models.PaymentPending)
	require.NoError(t, orderDB.CreatePendingOrder(ctx, fresh))

	stale, err := orderDB.ListStalePendingOrders(ctx, time.Now().UTC().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.OrderID, stale[0].OrderID)
}

func TestSetPaymentIntentAndMarkEmailSent(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	seedConfig(t, bunDB, 10, 0)
	ctx := context.Background()

	order := newOrder(1, models.PaymentPending)
	require.NoError(t, orderDB.CreatePendingOrder(ctx, order))
	require.NoError(t, orderDB.SetPaymentIntent(ctx, order.OrderID, "pi_123"))
	require.NoError(t, orderDB.MarkEmailSent(ctx, order.OrderID))

	got, err := orderDB.GetOrderByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", got.PaymentIntentID)
	assert.True(t, got.EmailSent)

	assert.ErrorIs(t, orderDB.MarkEmailSent(ctx, "nope"), models.ErrNotFound)
}
