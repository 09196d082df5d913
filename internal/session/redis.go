package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps correlations in Redis under <prefix>:session:<id>:<slot>.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func NewRedisStore(opts RedisOptions) *RedisStore {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "camp"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL}
}

// Ping checks connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, sessionID string, slot Slot) (*Correlation, error) {
	val, err := s.client.Get(ctx, s.key(sessionID, slot)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	var c Correlation
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID string, slot Slot, c Correlation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sessionID, slot), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string, slot Slot) error {
	if err := s.client.Del(ctx, s.key(sessionID, slot)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *RedisStore) key(sessionID string, slot Slot) string {
	return fmt.Sprintf("%s:session:%s:%s", s.prefix, sessionID, slot)
}
