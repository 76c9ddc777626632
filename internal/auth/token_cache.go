package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// M2MTokenKey is the key used to store the M2M token in Redis
	M2MTokenKey = "ticketing:m2m_token"
	// TokenExpiryBuffer is how long before expiry a cached token stops being handed out
	TokenExpiryBuffer = 60 * time.Second
)

type TokenCache struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (tc *TokenCache) IsValid(now time.Time) bool {
	if tc == nil || tc.Token == "" {
		return false
	}
	return now.Add(TokenExpiryBuffer).Before(tc.ExpiresAt)
}

// RedisTokenCache shares one service token across all instances.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

// GetToken returns nil without error when nothing usable is cached.
func (c *RedisTokenCache) GetToken(ctx context.Context) (*TokenCache, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	tokenJSON, err := c.Client.Get(ctx, M2MTokenKey).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	var tokenCache TokenCache
	if err := json.Unmarshal([]byte(tokenJSON), &tokenCache); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token cache: %w", err)
	}

	if !tokenCache.IsValid(time.Now()) {
		return nil, nil
	}
	return &tokenCache, nil
}

func (c *RedisTokenCache) SetToken(ctx context.Context, token string, expiresAt time.Time) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	tokenJSON, err := json.Marshal(&TokenCache{Token: token, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}

	if err := c.Client.Set(ctx, M2MTokenKey, tokenJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}
