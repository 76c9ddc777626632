package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator("0.05", 50)
	require.NoError(t, err)
	return c
}

func TestTwoTicketOrder(t *testing.T) {
	c := newTestCalculator(t)

	// 2 x 1500
	assert.Equal(t, int64(250), c.CalculateProcessingFee(3000, 2))
	assert.Equal(t, int64(3250), c.CalculateGrandTotal(3000, 2))
}

func TestRoundsHalfUp(t *testing.T) {
	c := newTestCalculator(t)

	// 5% of 1010 is 50.5
	assert.Equal(t, int64(51+50), c.CalculateProcessingFee(1010, 1))
	// 5% of 1009 is 50.45
	assert.Equal(t, int64(50+50), c.CalculateProcessingFee(1009, 1))
}

func TestFreeOrderHasNoFee(t *testing.T) {
	c := newTestCalculator(t)

	assert.Equal(t, int64(0), c.CalculateProcessingFee(0, 4))
	assert.Equal(t, int64(0), c.CalculateGrandTotal(0, 4))
}

func TestGrandTotalIdentity(t *testing.T) {
	c := newTestCalculator(t)

	for subtotal := int64(0); subtotal <= 20000; subtotal += 137 {
		for count := 1; count <= 10; count++ {
			fee := c.CalculateProcessingFee(subtotal, count)
			assert.Equal(t, subtotal+fee, c.CalculateGrandTotal(subtotal, count))
			assert.GreaterOrEqual(t, fee, int64(0))
		}
	}
}

func TestFeeIsMonotonic(t *testing.T) {
	c := newTestCalculator(t)

	for count := 1; count <= 10; count++ {
		prev := int64(-1)
		for subtotal := int64(0); subtotal <= 10000; subtotal += 7 {
			fee := c.CalculateProcessingFee(subtotal, count)
			assert.GreaterOrEqual(t, fee, prev)
			prev = fee
		}
	}

	for subtotal := int64(0); subtotal <= 10000; subtotal += 250 {
		prev := int64(-1)
		for count := 1; count <= 20; count++ {
			fee := c.CalculateProcessingFee(subtotal, count)
			assert.GreaterOrEqual(t, fee, prev)
			prev = fee
		}
	}
}

func TestQuote(t *testing.T) {
	c := newTestCalculator(t)

	q := c.Quote(3000, 2)
	assert.Equal(t, Breakdown{Subtotal: 3000, ProcessingFee: 250, GrandTotal: 3250}, q)
}

func TestNewCalculatorRejectsBadInput(t *testing.T) {
	_, err := NewCalculator("five percent", 50)
	assert.Error(t, err)

	_, err = NewCalculator("-0.01", 50)
	assert.Error(t, err)

	_, err = NewCalculator("0.05", -1)
	assert.Error(t, err)
}
