package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type WalletClient struct {
	BaseURL string
	Client  *http.Client
	Tokens  TokenSource
}

func NewWalletClient(baseURL string, client *http.Client, tokens TokenSource) *WalletClient {
	return &WalletClient{BaseURL: strings.TrimRight(baseURL, "/"), Client: client, Tokens: tokens}
}

// PassURL returns where the buyer can download the ticket's pass, or "" when
// the wallet service has none for this ticket.
func (c *WalletClient) PassURL(ctx context.Context, ticketID, platform string) (string, error) {
	endpoint := fmt.Sprintf("%s/passes/%s?platform=%s", c.BaseURL, url.PathEscape(ticketID), url.QueryEscape(platform))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if c.Tokens != nil {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wallet service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("wallet service returned %s", resp.Status)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode wallet response: %w", err)
	}
	return body.URL, nil
}
