package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-auth-core/internal/config"
	"github.com/redis/go-redis/v9"
)

// blacklistPrefix keys revoked-session entries. The gateway-side authorization
// check looks up the same key, so the format is part of the external contract.
const blacklistPrefix = "blacklist:session:"

// NewClient creates a Redis client from the configured URL and verifies
// connectivity with a short ping.
func NewClient(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// Store is a thin wrapper over Redis exposing the two operations this core
// needs from its shared cache.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get returns the value and true when the key exists; "" and false otherwise.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// BlacklistSession marks a session id unusable for ttl. The TTL must outlast
// the longest remaining lifetime of any access token bound to the session, so
// a self-verifying token can never outlive its revocation.
func (s *Store) BlacklistSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	return s.Set(ctx, blacklistPrefix+sessionID, "true", ttl)
}

// SessionBlacklisted reports whether the session id has been revoked.
func (s *Store) SessionBlacklisted(ctx context.Context, sessionID string) (bool, error) {
	_, ok, err := s.Get(ctx, blacklistPrefix+sessionID)
	return ok, err
}
