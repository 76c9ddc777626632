package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gameday-ticketing/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type recordedRequest struct {
	path           string
	form           url.Values
	idempotencyKey string
}

func newStripeTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*StripeGateway, *[]recordedRequest) {
	t.Helper()
	var recorded []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		recorded = append(recorded, recordedRequest{
			path:           r.URL.Path,
			form:           form,
			idempotencyKey: r.Header.Get("Idempotency-Key"),
		})
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	g, err := NewStripeGateway("sk_test_123", "usd", &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, logger.NewConsoleLogger(nil))
	require.NoError(t, err)
	return g, &recorded
}

func TestStripeAuthorizeUsesManualCapture(t *testing.T) {
	g, recorded := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret","status":"requires_payment_method"}`)
	})

	auth, err := g.Authorize(context.Background(), AuthorizationRequest{
		OrderID:    "order-1",
		EventID:    "evt-1",
		BuyerEmail: "parent@example.com",
		Amount:     3250,
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", auth.Reference)
	assert.Equal(t, "pi_123_secret", auth.ClientSecret)

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	assert.Equal(t, "/v1/payment_intents", req.path)
	assert.Equal(t, "3250", req.form.Get("amount"))
	assert.Equal(t, "usd", req.form.Get("currency"))
	assert.Equal(t, "manual", req.form.Get("capture_method"))
	assert.Equal(t, "order-1", req.form.Get("metadata[order_id]"))
	assert.Equal(t, "authorize-order-1", req.idempotencyKey)
}

func TestStripeCaptureReturnsChargeID(t *testing.T) {
	g, recorded := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","status":"succeeded","latest_charge":"ch_456"}`)
	})

	id, err := g.Capture(context.Background(), "pi_123", "capture-order-1")
	require.NoError(t, err)
	assert.Equal(t, "ch_456", id)

	require.Len(t, *recorded, 1)
	assert.Equal(t, "/v1/payment_intents/pi_123/capture", (*recorded)[0].path)
	assert.Equal(t, "capture-order-1", (*recorded)[0].idempotencyKey)
}

func TestStripeCardErrorIsDecline(t *testing.T) {
	g, _ := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`)
	})

	_, err := g.Authorize(context.Background(), AuthorizationRequest{OrderID: "order-1", Amount: 3250})
	require.Error(t, err)
	assert.True(t, IsDeclined(err))
	assert.Equal(t, "Your card has insufficient funds.", PublicMessage(err))
}

func TestStripeServerErrorIsRetryable(t *testing.T) {
	g, _ := newStripeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
	})

	_, err := g.Capture(context.Background(), "pi_123", "capture-order-1")
	require.Error(t, err)
	assert.False(t, IsDeclined(err))
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestNewStripeGatewayRequiresKey(t *testing.T) {
	_, err := NewStripeGateway("", "usd", nil, logger.NewConsoleLogger(nil))
	assert.ErrorIs(t, err, ErrStripeClientInitFailed)
}

func signedWebhook(t *testing.T, payload, secret string) (string, []byte) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header, signed.Payload
}

func TestParseWebhookPaymentFailed(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_9","object":"payment_intent","metadata":{"order_id":"order-9"},"last_payment_error":{"message":"Your card was declined."}}}}`
	header, body := signedWebhook(t, payload, "whsec_test")

	evt, err := ParseWebhook(body, header, "whsec_test")
	require.NoError(t, err)
	assert.Equal(t, WebhookFailed, evt.Kind)
	assert.Equal(t, "order-9", evt.OrderID)
	assert.Equal(t, "pi_9", evt.Reference)
	assert.Equal(t, "Your card was declined.", evt.Message)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","type":"payment_intent.canceled","data":{"object":{"id":"pi_9"}}}`
	header, body := signedWebhook(t, payload, "whsec_other")

	_, err := ParseWebhook(body, header, "whsec_test")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`
	header, body := signedWebhook(t, payload, "whsec_test")

	evt, err := ParseWebhook(body, header, "whsec_test")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, evt.Kind)
	assert.True(t, strings.HasPrefix(evt.Type, "customer."))
}
