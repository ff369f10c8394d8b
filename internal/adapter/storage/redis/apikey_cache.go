package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// APIKeyCache implements ports.APIKeyCache using Redis. Entries are keyed
// by the key's storage hash; verified keys are cached JSON-encoded so the
// hot Verify path skips the database. Revoke and rollover invalidate.
type APIKeyCache struct {
	client *goredis.Client
	prefix string
}

// NewAPIKeyCache creates a new Redis-backed API key cache.
func NewAPIKeyCache(client *goredis.Client) *APIKeyCache {
	return &APIKeyCache{
		client: client,
		prefix: "apikey:",
	}
}

// Get retrieves a cached key by hash. Returns nil, nil on a miss.
func (c *APIKeyCache) Get(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	val, err := c.client.Get(ctx, c.prefix+keyHash).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis apikey get: %w", err)
	}

	var key domain.APIKey
	if err := json.Unmarshal(val, &key); err != nil {
		return nil, fmt.Errorf("redis apikey decode: %w", err)
	}
	// KeyHash carries json:"-", restore it from the cache key.
	key.KeyHash = keyHash
	return &key, nil
}

// Set caches a verified key with TTL.
func (c *APIKeyCache) Set(ctx context.Context, key *domain.APIKey, ttl time.Duration) error {
	val, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("redis apikey encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key.KeyHash, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis apikey set: %w", err)
	}
	return nil
}

// Invalidate drops a cached key so revocation takes effect within one
// round trip instead of one TTL.
func (c *APIKeyCache) Invalidate(ctx context.Context, keyHash string) error {
	if err := c.client.Del(ctx, c.prefix+keyHash).Err(); err != nil {
		return fmt.Errorf("redis apikey del: %w", err)
	}
	return nil
}
