package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketConfig is the per-event ticketing record. SoldCount and ReservedCount
// are only changed by conditional UPDATE statements in the repositories.
type TicketConfig struct {
	bun.BaseModel `bun:"table:ticket_configs"`

	EventID       string    `bun:"event_id,pk" json:"event_id"`
	EventName     string    `bun:"event_name" json:"event_name"`
	Venue         string    `bun:"venue" json:"venue,omitempty"`
	EventDate     time.Time `bun:"event_date,nullzero" json:"event_date,omitempty"`
	Enabled       bool      `bun:"enabled" json:"enabled"`
	Price         int64     `bun:"price" json:"price"`
	TotalCapacity int       `bun:"total_capacity" json:"total_capacity"`
	SoldCount     int       `bun:"sold_count" json:"sold_count"`
	ReservedCount int       `bun:"reserved_count" json:"reserved_count"`
	SalesStart    time.Time `bun:"sales_start,nullzero" json:"sales_start,omitempty"`
	SalesEnd      time.Time `bun:"sales_end,nullzero" json:"sales_end,omitempty"`
	MaxPerOrder   int       `bun:"max_per_order" json:"max_per_order"`
	HasSeating    bool      `bun:"has_seating" json:"has_seating"`
	CreatedAt     time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at" json:"updated_at"`
}

func (c *TicketConfig) Available() int {
	n := c.TotalCapacity - c.SoldCount - c.ReservedCount
	if n < 0 {
		return 0
	}
	return n
}

type SalesWindowState int

const (
	SalesOpen SalesWindowState = iota
	SalesNotStarted
	SalesEnded
)

// SalesWindow reports where now falls relative to the configured window.
// Unset bounds are open-ended.
func (c *TicketConfig) SalesWindow(now time.Time) SalesWindowState {
	if !c.SalesStart.IsZero() && now.Before(c.SalesStart) {
		return SalesNotStarted
	}
	if !c.SalesEnd.IsZero() && !now.Before(c.SalesEnd) {
		return SalesEnded
	}
	return SalesOpen
}

type Availability struct {
	EventID       string `json:"event_id"`
	Enabled       bool   `json:"enabled"`
	Price         int64  `json:"price"`
	TotalCapacity int    `json:"total_capacity"`
	Sold          int    `json:"sold"`
	Reserved      int    `json:"reserved"`
	Available     int    `json:"available"`
	MaxPerOrder   int    `json:"max_per_order"`
	SalesOpen     bool   `json:"sales_open"`
}
