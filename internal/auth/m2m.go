package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gameday-ticketing/internal/logger"
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type M2MConfig struct {
	KeycloakURL   string
	KeycloakRealm string
	ClientID      string
	ClientSecret  string
}

func (c M2MConfig) tokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(c.KeycloakURL, "/"), c.KeycloakRealm)
}

// GetM2MToken runs the client-credentials grant against Keycloak.
func GetM2MToken(ctx context.Context, cfg M2MConfig, client *http.Client) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", cfg.ClientID)
	data.Set("client_secret", cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.tokenURL(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to get token, status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	return &tokenResp, nil
}

// TokenProvider hands out a service token for calls to other services,
// fetching a new one only when the shared cache has none.
type TokenProvider struct {
	Config M2MConfig
	Client *http.Client
	Cache  *RedisTokenCache
	logger *logger.Logger
}

func NewTokenProvider(cfg M2MConfig, client *http.Client, cache *RedisTokenCache, log *logger.Logger) *TokenProvider {
	return &TokenProvider{Config: cfg, Client: client, Cache: cache, logger: log}
}

func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.Cache != nil {
		cached, err := p.Cache.GetToken(ctx)
		if err != nil {
			p.logger.Warn("AUTH", fmt.Sprintf("Token cache unavailable: %v", err))
		} else if cached != nil {
			return cached.Token, nil
		}
	}

	resp, err := GetM2MToken(ctx, p.Config, p.Client)
	if err != nil {
		p.logger.LogSecurity("M2M_TOKEN_FAILED", err.Error())
		return "", err
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	if resp.ExpiresIn <= 0 {
		if exp, err := TokenExpiry(resp.AccessToken); err == nil {
			expiresAt = exp
		}
	}

	if p.Cache != nil {
		if err := p.Cache.SetToken(ctx, resp.AccessToken, expiresAt); err != nil {
			p.logger.Warn("AUTH", fmt.Sprintf("Failed to cache service token: %v", err))
		}
	}
	p.logger.Debug("AUTH", fmt.Sprintf("Fetched service token valid until %s", expiresAt.Format(time.RFC3339)))
	return resp.AccessToken, nil
}
