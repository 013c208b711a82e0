// configstore/redis.go
package configstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each config name in its own hash.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore wraps an existing client. Keys are prefixed with "config:".
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "config:"}
}

// OpenRedis connects to addr (a redis:// URL or host:port) and pings it.
func OpenRedis(ctx context.Context, addr, password string, timeout time.Duration) (*RedisStore, error) {
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("configstore: parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr, Password: password}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("configstore: redis ping: %w", err)
	}
	return NewRedisStore(client), nil
}

func (s *RedisStore) key(name string) string {
	return s.keyPrefix + name
}

// Save replaces the hash for name in a single transaction.
func (s *RedisStore) Save(ctx context.Context, name string, values map[string]string) error {
	if err := validName(name); err != nil {
		return err
	}
	key := s.key(name)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			fields := make(map[string]any, len(values))
			for k, v := range values {
				fields[k] = v
			}
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("configstore: redis save %q: %w", name, err)
	}
	return nil
}

// Load returns the hash stored under name.
func (s *RedisStore) Load(ctx context.Context, name string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("configstore: redis load %q: %w", name, err)
	}
	// HGETALL on a missing key returns an empty map rather than redis.Nil.
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return values, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
