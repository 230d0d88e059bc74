package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps confirmations in Redis so any service instance can serve
// the confirm step. Expiry is delegated to key TTLs of ExpiresAt-CreatedAt.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient builds a client from configuration and verifies connectivity
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisStore wraps client; keys are prefix+terminalID
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(terminalID string) string {
	return s.prefix + terminalID
}

// Put implements Store
func (s *RedisStore) Put(ctx context.Context, c Confirmation) error {
	ttl := c.ExpiresAt.Sub(c.CreatedAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal confirmation: %w", err)
	}
	if err := s.client.Set(ctx, s.key(c.TerminalID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store confirmation for %s: %w", c.TerminalID, err)
	}
	return nil
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, terminalID string) (*Confirmation, error) {
	data, err := s.client.Get(ctx, s.key(terminalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read confirmation for %s: %w", terminalID, err)
	}

	var c Confirmation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode confirmation for %s: %w", terminalID, err)
	}
	return &c, nil
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, terminalID string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(terminalID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete confirmation for %s: %w", terminalID, err)
	}
	return n > 0, nil
}

// Health reports Redis reachability
func (s *RedisStore) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	status := map[string]string{"status": "up"}
	if err := s.client.Ping(ctx).Err(); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}
