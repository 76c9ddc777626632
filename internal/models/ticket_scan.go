package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ScanResult string

const (
	ScanValid       ScanResult = "valid"
	ScanAlreadyUsed ScanResult = "already_used"
	ScanInvalid     ScanResult = "invalid"
	ScanExpired     ScanResult = "expired"
)

// TicketScan is the append-only gate log. TicketID is empty for unknown codes.
type TicketScan struct {
	bun.BaseModel `bun:"table:ticket_scans"`

	ScanID       string     `bun:"scan_id,pk" json:"scan_id"`
	TicketID     string     `bun:"ticket_id,nullzero" json:"ticket_id,omitempty"`
	EventID      string     `bun:"event_id" json:"event_id"`
	ScannedBy    string     `bun:"scanned_by" json:"scanned_by"`
	ScannedAt    time.Time  `bun:"scanned_at" json:"scanned_at"`
	Result       ScanResult `bun:"result" json:"result"`
	TicketNumber string     `bun:"ticket_number,nullzero" json:"ticket_number,omitempty"`
	OwnerName    string     `bun:"owner_name,nullzero" json:"owner_name,omitempty"`
}

// EvaluateScan decides the outcome for a ticket presented at eventID's gate.
// A nil ticket means the code was not found.
func EvaluateScan(t *Ticket, eventID string) ScanResult {
	switch {
	case t == nil:
		return ScanInvalid
	case t.EventID != eventID:
		return ScanInvalid
	case t.Status == TicketUsed:
		return ScanAlreadyUsed
	case t.Status == TicketCancelled, t.Status == TicketExpired:
		return ScanExpired
	case t.Status == TicketValid:
		return ScanValid
	default:
		return ScanInvalid
	}
}

// ScanEvent is broadcast to gate dashboards and Kafka after each scan.
type ScanEvent struct {
	ScanID       string     `json:"scan_id"`
	EventID      string     `json:"event_id"`
	TicketID     string     `json:"ticket_id,omitempty"`
	TicketNumber string     `json:"ticket_number,omitempty"`
	OwnerName    string     `json:"owner_name,omitempty"`
	Result       ScanResult `json:"result"`
	Message      string     `json:"message"`
	ScannedBy    string     `json:"scanned_by"`
	ScannedAt    time.Time  `json:"scanned_at"`
}
