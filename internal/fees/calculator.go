package fees

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Calculator computes buyer-facing processing fees in minor currency units.
type Calculator struct {
	percent        decimal.Decimal
	fixedPerTicket int64
}

func NewCalculator(percent string, fixedPerTicket int64) (*Calculator, error) {
	p, err := decimal.NewFromString(percent)
	if err != nil {
		return nil, fmt.Errorf("invalid fee percent %q: %w", percent, err)
	}
	if p.IsNegative() || fixedPerTicket < 0 {
		return nil, fmt.Errorf("fees must not be negative")
	}
	return &Calculator{percent: p, fixedPerTicket: fixedPerTicket}, nil
}

// CalculateProcessingFee returns round_half_up(subtotal*percent) plus the
// per-ticket fixed fee. Free orders carry no fee.
func (c *Calculator) CalculateProcessingFee(subtotal int64, ticketCount int) int64 {
	if subtotal <= 0 || ticketCount <= 0 {
		return 0
	}
	variable := decimal.NewFromInt(subtotal).Mul(c.percent).Round(0).IntPart()
	return variable + int64(ticketCount)*c.fixedPerTicket
}

func (c *Calculator) CalculateGrandTotal(subtotal int64, ticketCount int) int64 {
	return subtotal + c.CalculateProcessingFee(subtotal, ticketCount)
}

type Breakdown struct {
	Subtotal      int64 `json:"subtotal"`
	ProcessingFee int64 `json:"processing_fee"`
	GrandTotal    int64 `json:"grand_total"`
}

func (c *Calculator) Quote(subtotal int64, ticketCount int) Breakdown {
	fee := c.CalculateProcessingFee(subtotal, ticketCount)
	return Breakdown{Subtotal: subtotal, ProcessingFee: fee, GrandTotal: subtotal + fee}
}
