// Package delivery talks to the services that get tickets into buyers'
// hands: the notification service for email and the wallet service for
// Apple and Google passes.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/models"
)

// TokenSource supplies the bearer token for service-to-service calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type HTTPNotifier struct {
	BaseURL string
	Client  *http.Client
	Tokens  TokenSource
	logger  *logger.Logger
}

func NewHTTPNotifier(baseURL string, client *http.Client, tokens TokenSource, log *logger.Logger) *HTTPNotifier {
	return &HTTPNotifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
		Tokens:  tokens,
		logger:  log,
	}
}

type ticketEmail struct {
	Template string                `json:"template"`
	To       string                `json:"to"`
	Delivery models.TicketDelivery `json:"data"`
}

func (n *HTTPNotifier) SendTickets(ctx context.Context, delivery models.TicketDelivery) error {
	body, err := json.Marshal(ticketEmail{Template: "ticket_delivery", To: delivery.BuyerEmail, Delivery: delivery})
	if err != nil {
		return fmt.Errorf("failed to encode ticket email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/notifications/tickets", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Tokens != nil {
		token, err := n.Tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notification service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification service returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	n.logger.Debug("DELIVERY", fmt.Sprintf("Notification accepted for order %s", delivery.OrderID))
	return nil
}
