package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
	TicketExpired   TicketStatus = "expired"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID     string       `bun:"ticket_id,pk" json:"ticket_id"`
	OrderID      string       `bun:"order_id" json:"order_id"`
	EventID      string       `bun:"event_id" json:"event_id"`
	TicketNumber string       `bun:"ticket_number" json:"ticket_number"`
	QRCode       string       `bun:"qr_code,unique" json:"qr_code"`
	OwnerName    string       `bun:"owner_name" json:"owner_name"`
	OwnerEmail   string       `bun:"owner_email" json:"owner_email"`
	Status       TicketStatus `bun:"status" json:"status"`
	TierName     string       `bun:"tier_name" json:"tier_name"`
	Price        int64        `bun:"price" json:"price"`
	IssuedAt     time.Time    `bun:"issued_at" json:"issued_at"`
	UsedAt       time.Time    `bun:"used_at,nullzero" json:"used_at,omitempty"`
	ScannedBy    string       `bun:"scanned_by,nullzero" json:"scanned_by,omitempty"`
}
