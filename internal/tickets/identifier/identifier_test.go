package identifier

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketNumberPattern = regexp.MustCompile(`^TKT-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}$`)

func TestGenerateTicketNumberFormat(t *testing.T) {
	for i := 0; i < 500; i++ {
		n := GenerateTicketNumber()
		require.Regexp(t, ticketNumberPattern, n)
		assert.NotContains(t, n[4:], "0")
		assert.NotContains(t, n[4:], "O")
		assert.NotContains(t, n[4:], "1")
		assert.NotContains(t, n[4:], "I")
	}
}

func TestGenerateQRCodeIsDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := GenerateQRCode("ticket-1", "TKT-AAAA-BBBB")
		assert.True(t, strings.HasPrefix(code, QRPrefix+QRSeparator))
		assert.False(t, seen[code], "duplicate qr token %s", code)
		seen[code] = true
	}
}

func TestParseQRCode(t *testing.T) {
	code := GenerateQRCode("ticket-42", "TKT-ABCD-EFGH")

	id, number, ok := ParseQRCode(code)
	require.True(t, ok)
	assert.Equal(t, "ticket-42", id)
	assert.Equal(t, "TKT-ABCD-EFGH", number)

	_, _, ok = ParseQRCode("not-a-ticket")
	assert.False(t, ok)

	_, _, ok = ParseQRCode("XYZ|a|b|c")
	assert.False(t, ok)
}

func TestRenderPNG(t *testing.T) {
	png, err := RenderPNG(GenerateQRCode("ticket-1", GenerateTicketNumber()), 0)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
