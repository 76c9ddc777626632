package identifier

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	TicketNumberPrefix = "TKT"
	QRPrefix           = "GDT"
	QRSeparator        = "|"

	// No 0/O or 1/I so numbers can be read aloud at the gate.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	groupLen       = 4
	qrSuffixBytes  = 8
	DefaultQRPixel = 256
)

// GenerateTicketNumber returns a human-readable number like TKT-7KQ2-MX9D.
// Numbers are random, not guaranteed unique; the ticket id is the key.
func GenerateTicketNumber() string {
	return fmt.Sprintf("%s-%s-%s", TicketNumberPrefix, randomGroup(), randomGroup())
}

// GenerateQRCode builds the opaque token encoded in a ticket's QR image.
func GenerateQRCode(ticketID, ticketNumber string) string {
	suffix := make([]byte, qrSuffixBytes)
	_, _ = rand.Read(suffix)
	return strings.Join([]string{QRPrefix, ticketID, ticketNumber, hex.EncodeToString(suffix)}, QRSeparator)
}

// ParseQRCode splits a token into its ticket id and number. It only checks
// shape; the token is authoritative only through a store lookup.
func ParseQRCode(token string) (ticketID, ticketNumber string, ok bool) {
	parts := strings.Split(token, QRSeparator)
	if len(parts) != 4 || parts[0] != QRPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// RenderPNG encodes a token as a QR image.
func RenderPNG(token string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRPixel
	}
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

func randomGroup() string {
	var b strings.Builder
	max := big.NewInt(int64(len(Alphabet)))
	for i := 0; i < groupLen; i++ {
		n, _ := rand.Int(rand.Reader, max)
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String()
}
