package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

const (
	PaymentMethodCard = "card"
	PaymentMethodFree = "free"
)

const DefaultTierName = "General Admission"

type LineItem struct {
	TierName  string `json:"tier_name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// TicketOrder is one purchase. Money fields are minor currency units and
// GrandTotal always equals Subtotal + ProcessingFee.
type TicketOrder struct {
	bun.BaseModel `bun:"table:ticket_orders"`

	OrderID         string        `bun:"order_id,pk" json:"order_id"`
	EventID         string        `bun:"event_id" json:"event_id"`
	UserID          string        `bun:"user_id,nullzero" json:"user_id,omitempty"`
	BuyerEmail      string        `bun:"buyer_email" json:"buyer_email"`
	BuyerName       string        `bun:"buyer_name" json:"buyer_name"`
	LineItems       []LineItem    `bun:"line_items,type:jsonb" json:"line_items"`
	TicketCount     int           `bun:"ticket_count" json:"ticket_count"`
	Subtotal        int64         `bun:"subtotal" json:"subtotal"`
	ProcessingFee   int64         `bun:"processing_fee" json:"processing_fee"`
	GrandTotal      int64         `bun:"grand_total" json:"grand_total"`
	Currency        string        `bun:"currency" json:"currency"`
	PaymentMethod   string        `bun:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus `bun:"payment_status" json:"payment_status"`
	PaymentIntentID string        `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	TransactionID   string        `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	FailureReason   string        `bun:"failure_reason,nullzero" json:"failure_reason,omitempty"`
	EmailSent       bool          `bun:"email_sent" json:"email_sent"`
	CreatedAt       time.Time     `bun:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at" json:"updated_at"`
	CompletedAt     time.Time     `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
}

// OrderCompletedEvent is published once an order's tickets are persisted.
type OrderCompletedEvent struct {
	OrderID     string    `json:"order_id"`
	EventID     string    `json:"event_id"`
	BuyerEmail  string    `json:"buyer_email"`
	TicketCount int       `json:"ticket_count"`
	GrandTotal  int64     `json:"grand_total"`
	CompletedAt time.Time `json:"completed_at"`
}

type OrderFailedEvent struct {
	OrderID  string    `json:"order_id"`
	EventID  string    `json:"event_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// TicketDelivery is what the notification service needs to email an order's
// tickets to the buyer.
type TicketDelivery struct {
	OrderID    string    `json:"order_id"`
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	Venue      string    `json:"venue,omitempty"`
	EventDate  time.Time `json:"event_date,omitempty"`
	BuyerName  string    `json:"buyer_name"`
	BuyerEmail string    `json:"buyer_email"`
	GrandTotal int64     `json:"grand_total"`
	Currency   string    `json:"currency"`
	Tickets    []Ticket  `json:"tickets"`
}
